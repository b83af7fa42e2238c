// Package team wires the research crew: a hypothesis writer reviewed by
// a human, a planner dispatching work to a searcher, a coder, and a
// visualization agent, a quality reviewer driving the revision loop, a
// note taker compacting the conversation, and a report writer finishing
// the run.
package team

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/flowgraph-go/flow"
	"github.com/dshills/flowgraph-go/flow/agent"
)

// Node names.
const (
	NodeHypothesis    = "Hypothesis"
	NodeHumanReview   = "HumanReview"
	NodePlanner       = "Planner"
	NodeSearcher      = "Searcher"
	NodeCoder         = "Coder"
	NodeVisualization = "Visualization"
	NodeReport        = "Report"
	NodeQualityReview = "QualityReview"
	NodeNoteTaker     = "NoteTaker"
)

// Slot names. Each slot has exactly one writing node.
const (
	SlotHypothesis      = "hypothesis"
	SlotProcessDecision = "process_decision"
	SlotSearcher        = "searcher_state"
	SlotCode            = "code_state"
	SlotVisualization   = "visualization_state"
	SlotReport          = "report_section"
	SlotQualityReview   = "quality_review"
)

// RevisionMarker is the token the quality reviewer puts in its verdict
// when the latest work needs another pass.
const RevisionMarker = "REVISION"

// Human gate choices understood by the hypothesis review gate.
const (
	ChoiceContinue   = "continue"
	ChoiceRegenerate = "regenerate"
)

// Callers binds one agent caller per model-backed node.
type Callers struct {
	Hypothesis    agent.Caller
	Planner       agent.Caller
	Searcher      agent.Caller
	Coder         agent.Caller
	Visualization agent.Caller
	Report        agent.Caller
	QualityReview agent.Caller
	NoteTaker     agent.Caller
}

func (c Callers) validate() error {
	named := []struct {
		name   string
		caller agent.Caller
	}{
		{NodeHypothesis, c.Hypothesis},
		{NodePlanner, c.Planner},
		{NodeSearcher, c.Searcher},
		{NodeCoder, c.Coder},
		{NodeVisualization, c.Visualization},
		{NodeReport, c.Report},
		{NodeQualityReview, c.QualityReview},
		{NodeNoteTaker, c.NoteTaker},
	}
	var errs []error
	for _, n := range named {
		if n.caller == nil {
			errs = append(errs, fmt.Errorf("no caller for %s", n.name))
		}
	}
	return errors.Join(errs...)
}

// Config tunes the crew's non-model behavior. The zero value picks
// sensible defaults.
type Config struct {
	// CompactThreshold is the log length above which the note taker
	// summarizes the middle of the conversation. Default 20.
	CompactThreshold int

	// CompactHead and CompactTail are how many leading and trailing
	// messages survive a compaction verbatim. Defaults 4 and 4.
	CompactHead int
	CompactTail int
}

func (c Config) withDefaults() Config {
	if c.CompactThreshold <= 0 {
		c.CompactThreshold = 20
	}
	if c.CompactHead <= 0 {
		c.CompactHead = 4
	}
	if c.CompactTail <= 0 {
		c.CompactTail = 4
	}
	return c
}

// NewThreadID returns a fresh thread identifier.
func NewThreadID() string {
	return "thread-" + uuid.NewString()
}

// Build wires the crew into an executable graph:
//
//	entry  -> Hypothesis (when the hypothesis slot is empty) or Planner
//	Hypothesis -> HumanReview gate -> Hypothesis (regenerate) or Planner
//	Planner -> Searcher | Coder | Visualization | Planner | Report(FINISH)
//	workers -> QualityReview -> back to last sender (revision) or NoteTaker
//	NoteTaker -> Planner
//	Report -> End
func Build(c Callers, cfg Config) (*flow.Graph, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	workers := []string{NodeSearcher, NodeCoder, NodeVisualization}

	return flow.NewBuilder().
		AddNode(NodeHypothesis, hypothesisHandler(c.Hypothesis), flow.OwnsSlot(SlotHypothesis)).
		AddGate(NodeHumanReview, hypothesisGate()).
		AddNode(NodePlanner, plannerHandler(c.Planner), flow.OwnsSlot(SlotProcessDecision)).
		AddNode(NodeSearcher, workerHandler(NodeSearcher, SlotSearcher, c.Searcher, searcherInstruction), flow.OwnsSlot(SlotSearcher)).
		AddNode(NodeCoder, workerHandler(NodeCoder, SlotCode, c.Coder, coderInstruction), flow.OwnsSlot(SlotCode)).
		AddNode(NodeVisualization, workerHandler(NodeVisualization, SlotVisualization, c.Visualization, visualizationInstruction), flow.OwnsSlot(SlotVisualization)).
		AddNode(NodeReport, workerHandler(NodeReport, SlotReport, c.Report, reportInstruction), flow.OwnsSlot(SlotReport)).
		AddNode(NodeQualityReview, qualityReviewHandler(c.QualityReview), flow.OwnsSlot(SlotQualityReview)).
		AddNode(NodeNoteTaker, noteTakerHandler(c.NoteTaker, cfg)).
		SetEntryRouter(flow.EntryRouter(SlotHypothesis, NodeHypothesis, NodePlanner)).
		AddEdge(NodeHypothesis, NodeHumanReview).
		AddRouter(NodeHumanReview, flow.EntryRouter(SlotHypothesis, NodeHypothesis, NodePlanner)).
		AddRouter(NodePlanner, flow.DispatchRouter(SlotProcessDecision, map[string]string{
			NodeSearcher:      NodeSearcher,
			NodeCoder:         NodeCoder,
			NodeVisualization: NodeVisualization,
			NodePlanner:       NodePlanner,
			flow.FinishLabel:  NodeReport,
		}, NodePlanner)).
		AddEdge(NodeSearcher, NodeQualityReview).
		AddEdge(NodeCoder, NodeQualityReview).
		AddEdge(NodeVisualization, NodeQualityReview).
		AddRouter(NodeQualityReview, flow.QualityGateRouter(RevisionMarker, NodePlanner, NodeNoteTaker, workers)).
		AddEdge(NodeNoteTaker, NodePlanner).
		AddEdge(NodeReport, flow.End).
		Build()
}
