package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/flowgraph-go/flow"
	"github.com/dshills/flowgraph-go/flow/agent"
)

// Per-node instructions. Kept minimal; production deployments replace
// these with their own prompt material.
const (
	hypothesisInstruction = "Propose a concrete, testable research hypothesis for the task in the conversation. " +
		"If modification areas are listed, address each of them."
	plannerInstruction = "Decide the next step for the team. Reply with a JSON object " +
		`{"next": "Searcher" | "Coder" | "Visualization" | "FINISH"}. ` +
		"Choose FINISH only when the gathered material supports the final report."
	searcherInstruction = "Gather background material and evidence relevant to the hypothesis. " +
		"Summarize findings with sources."
	coderInstruction = "Write or revise the analysis code the hypothesis needs. " +
		"Reply with the code and a short rationale."
	visualizationInstruction = "Describe the charts that best present the current results, " +
		"including axes and data series."
	reportInstruction = "Write the final report section from the hypothesis, findings, code, and charts " +
		"recorded in the shared workspace."
	qualityInstruction = "Review the most recent contribution for correctness and completeness. " +
		"If it needs another pass, start your reply with " + RevisionMarker +
		" and name what to fix. Otherwise reply APPROVED with a short justification."
	noteTakerInstruction = "Condense the following conversation excerpt into a factual summary " +
		"that preserves decisions, findings, and open issues."
)

// viewOf projects the workflow state into the model-facing view: the
// node's instruction as system context, each log entry as a labeled
// user turn, and every populated slot in the shared workspace.
func viewOf(s flow.State, instruction string) agent.View {
	msgs := make([]agent.Message, 0, len(s.Messages)+2)
	msgs = append(msgs, agent.Message{Role: agent.RoleSystem, Content: instruction})
	for _, m := range s.Messages {
		msgs = append(msgs, agent.Message{
			Role:    agent.RoleUser,
			Content: m.Author + ": " + m.Content,
		})
	}
	if len(s.ModificationAreas) > 0 {
		msgs = append(msgs, agent.Message{
			Role:    agent.RoleUser,
			Content: "Modification areas: " + strings.Join(s.ModificationAreas, "; "),
		})
	}

	slots := make(map[string]string, len(s.Slots))
	for name, v := range s.Slots {
		if !v.IsEmpty() {
			slots[name] = v.Text()
		}
	}
	return agent.View{Messages: msgs, Slots: slots}
}

// workerHandler builds the common produce-into-a-slot handler: one
// model call, the reply written to the node's slot and appended to the
// log.
func workerHandler(name, slot string, caller agent.Caller, instruction string) flow.HandlerFunc {
	return func(ctx context.Context, s flow.State) (flow.Delta, error) {
		res, err := caller.Invoke(ctx, viewOf(s, instruction))
		if err != nil {
			return flow.Delta{}, err
		}
		return flow.Delta{
			Slots:   map[string]flow.SlotValue{slot: flow.AuthoredSlot(name, res.Text)},
			Message: &flow.Message{Author: name, Content: res.Text},
		}, nil
	}
}

// hypothesisHandler produces the hypothesis and clears any modification
// areas it just addressed.
func hypothesisHandler(caller agent.Caller) flow.HandlerFunc {
	return func(ctx context.Context, s flow.State) (flow.Delta, error) {
		res, err := caller.Invoke(ctx, viewOf(s, hypothesisInstruction))
		if err != nil {
			return flow.Delta{}, err
		}
		return flow.Delta{
			Slots:                  map[string]flow.SlotValue{SlotHypothesis: flow.AuthoredSlot(NodeHypothesis, res.Text)},
			Message:                &flow.Message{Author: NodeHypothesis, Content: res.Text},
			ClearModificationAreas: true,
		}, nil
	}
}

// plannerHandler records the raw dispatch decision; the router, not the
// handler, interprets it.
func plannerHandler(caller agent.Caller) flow.HandlerFunc {
	return func(ctx context.Context, s flow.State) (flow.Delta, error) {
		res, err := caller.Invoke(ctx, viewOf(s, plannerInstruction))
		if err != nil {
			return flow.Delta{}, err
		}
		return flow.Delta{
			Slots:   map[string]flow.SlotValue{SlotProcessDecision: flow.TextSlot(res.Text)},
			Message: &flow.Message{Author: NodePlanner, Content: res.Text},
		}, nil
	}
}

// qualityReviewHandler turns the reviewer's verdict into the revision
// flag the quality router consumes.
func qualityReviewHandler(caller agent.Caller) flow.HandlerFunc {
	return func(ctx context.Context, s flow.State) (flow.Delta, error) {
		res, err := caller.Invoke(ctx, viewOf(s, qualityInstruction))
		if err != nil {
			return flow.Delta{}, err
		}
		revise := strings.Contains(res.Text, RevisionMarker)
		return flow.Delta{
			Slots:         map[string]flow.SlotValue{SlotQualityReview: flow.AuthoredSlot(NodeQualityReview, res.Text)},
			Message:       &flow.Message{Author: NodeQualityReview, Content: res.Text},
			NeedsRevision: flow.SetNeedsRevision(revise),
		}, nil
	}
}

// noteTakerHandler compacts the log once it outgrows the threshold:
// head and tail survive verbatim, the middle becomes one summary
// message. Below the threshold it is a no-op and makes no model call.
func noteTakerHandler(caller agent.Caller, cfg Config) flow.HandlerFunc {
	return func(ctx context.Context, s flow.State) (flow.Delta, error) {
		if len(s.Messages) <= cfg.CompactThreshold {
			return flow.Delta{}, nil
		}
		head, tail := cfg.CompactHead, cfg.CompactTail
		if head+tail >= len(s.Messages) {
			return flow.Delta{}, nil
		}

		var excerpt strings.Builder
		for _, m := range s.Messages[head : len(s.Messages)-tail] {
			fmt.Fprintf(&excerpt, "%s: %s\n", m.Author, m.Content)
		}
		res, err := caller.Invoke(ctx, agent.View{
			Messages: []agent.Message{
				{Role: agent.RoleSystem, Content: noteTakerInstruction},
				{Role: agent.RoleUser, Content: excerpt.String()},
			},
		})
		if err != nil {
			return flow.Delta{}, err
		}
		return flow.Delta{
			Compact: &flow.Compaction{
				Head: head,
				Tail: tail,
				Summary: []flow.Message{
					{Author: NodeNoteTaker, Content: "Summary of earlier discussion: " + res.Text},
				},
			},
		}, nil
	}
}

// hypothesisGate is the human checkpoint after hypothesis generation.
// "continue" accepts the hypothesis; "regenerate" clears it and records
// the reviewer's modification areas, which routes the run back to the
// hypothesis node. Unrecognized choices are treated as continue, so a
// sloppy reply never wedges the thread.
func hypothesisGate() flow.Gate {
	return flow.Gate{
		Prompt: func(s flow.State) string {
			return fmt.Sprintf("Review the hypothesis:\n\n%s\n\nReply %q to proceed or %q to request changes.",
				s.Slot(SlotHypothesis).Text(), ChoiceContinue, ChoiceRegenerate)
		},
		Apply: func(s flow.State, in flow.HumanInput) flow.Delta {
			if strings.EqualFold(strings.TrimSpace(in.Choice), ChoiceRegenerate) {
				return flow.Delta{
					Slots:             map[string]flow.SlotValue{SlotHypothesis: flow.EmptySlot()},
					ModificationAreas: in.ModificationAreas,
					Message: &flow.Message{
						Author:  NodeHumanReview,
						Content: "Hypothesis rejected; regeneration requested.",
					},
				}
			}
			return flow.Delta{
				Message: &flow.Message{Author: NodeHumanReview, Content: "Hypothesis approved."},
			}
		},
	}
}
