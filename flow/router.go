package flow

import (
	"strings"

	"github.com/tidwall/gjson"
)

// End is the sentinel successor that terminates a run with
// StatusCompleted. It may appear as an edge target or a dispatch-table
// value, never as a node name.
const End = "__end__"

// startNode is the pseudo node recorded with the step-0 checkpoint. A
// resume from step 0 routes from here, which replays entry routing.
const startNode = "__start__"

// FinishLabel is the conventional dispatch label a planning node emits to
// hand off to the finishing stage. It is only meaningful if the dispatch
// table declares it; there is nothing special about it to the engine.
const FinishLabel = "FINISH"

// Router is a conditional edge: a pure decision function over the state
// plus the dispatch table that turns its labels into successor nodes.
//
// Route must be total. Malformed or unexpected state maps to the router's
// documented default label, never to a missing one. If Route nonetheless
// produces a label absent from Table, the run terminates with
// StatusRoutingError: a table that cannot receive its own router's output
// is a construction defect, and silently picking a successor would hide
// it.
type Router struct {
	Route func(s State) string
	Table map[string]string
}

// Next resolves the router against the state. The returned name is either
// a node in the graph or End.
func (r Router) Next(s State, from string) (string, error) {
	label := r.Route(s)
	to, ok := r.Table[label]
	if !ok {
		return "", &RoutingError{From: from, Label: label}
	}
	return to, nil
}

// EntryRouter gates on a slot being populated: an empty slot routes to
// the producer label, anything else routes onward. Both labels map to
// themselves, so the table reads as the pair of reachable nodes.
func EntryRouter(slot, producer, onward string) Router {
	return Router{
		Route: func(s State) string {
			if s.Slot(slot).IsEmpty() {
				return producer
			}
			return onward
		},
		Table: map[string]string{producer: producer, onward: onward},
	}
}

// DispatchRouter reads a decision slot written by a planning node and
// maps it onto the table's labels.
//
// Extraction is forgiving because the slot holds raw model output:
//
//  1. if the text carries a JSON object with a "next" field, that field
//     is the candidate label
//  2. otherwise the trimmed text is matched against the table's labels,
//     first exactly (case-insensitive), then by substring
//  3. anything else falls back to fallback, which must be a label in
//     table
//
// The table maps labels to node names and typically includes FinishLabel
// pointing at the finishing node. Fallback handles garbage output, not
// undeclared labels: a "next" field naming a label outside the table
// still falls back, since from the router's view it is just more
// malformed input.
func DispatchRouter(slot string, table map[string]string, fallback string) Router {
	labels := make([]string, 0, len(table))
	for l := range table {
		labels = append(labels, l)
	}
	return Router{
		Route: func(s State) string {
			raw := strings.TrimSpace(s.Slot(slot).Text())
			if v := gjson.Get(raw, "next"); v.Exists() {
				if label, ok := matchLabel(v.String(), labels); ok {
					return label
				}
				return fallback
			}
			if label, ok := matchLabel(raw, labels); ok {
				return label
			}
			return fallback
		},
		Table: table,
	}
}

func matchLabel(raw string, labels []string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, l := range labels {
		if strings.EqualFold(raw, l) {
			return l, true
		}
	}
	for _, l := range labels {
		if strings.Contains(raw, l) {
			return l, true
		}
	}
	return "", false
}

// QualityGateRouter implements the revision loop. Revision is requested
// when the state's NeedsRevision flag is set or the latest log message
// contains marker; either signal alone suffices. A requested revision
// routes back to LastSender so the producing node reworks its output. If
// LastSender is empty there is nobody to send back to, so the router
// falls through to recovery. Without a revision request it routes to
// pass.
//
// producers lists the nodes that can legitimately appear as LastSender;
// each maps to itself in the table. A LastSender outside that set
// surfaces as a routing error, which is the right outcome for a miswired
// graph.
func QualityGateRouter(marker, recovery, pass string, producers []string) Router {
	table := map[string]string{recovery: recovery, pass: pass}
	for _, p := range producers {
		table[p] = p
	}
	return Router{
		Route: func(s State) string {
			revise := s.NeedsRevision
			if !revise {
				if last, ok := s.LastMessage(); ok {
					revise = strings.Contains(last.Content, marker)
				}
			}
			if !revise {
				return pass
			}
			if s.LastSender == "" {
				return recovery
			}
			return s.LastSender
		},
		Table: table,
	}
}
