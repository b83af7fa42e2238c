package team

import (
	"context"
	"strings"
	"testing"

	"github.com/dshills/flowgraph-go/flow"
	"github.com/dshills/flowgraph-go/flow/agent"
	"github.com/dshills/flowgraph-go/flow/store"
)

type crew struct {
	hypothesis    *agent.Mock
	planner       *agent.Mock
	searcher      *agent.Mock
	coder         *agent.Mock
	visualization *agent.Mock
	report        *agent.Mock
	quality       *agent.Mock
	noteTaker     *agent.Mock
}

func defaultCrew() crew {
	return crew{
		hypothesis:    agent.NewMock("H1: more tests, fewer bugs"),
		planner:       agent.NewMock(`{"next": "Searcher"}`, "FINISH"),
		searcher:      agent.NewMock("findings with sources"),
		coder:         agent.NewMock("package main"),
		visualization: agent.NewMock("bar chart of defect rates"),
		report:        agent.NewMock("final report text"),
		quality:       agent.NewMock("APPROVED: solid work"),
		noteTaker:     agent.NewMock("summary"),
	}
}

func (c crew) callers() Callers {
	return Callers{
		Hypothesis:    c.hypothesis,
		Planner:       c.planner,
		Searcher:      c.searcher,
		Coder:         c.coder,
		Visualization: c.visualization,
		Report:        c.report,
		QualityReview: c.quality,
		NoteTaker:     c.noteTaker,
	}
}

func newEngine(t *testing.T, c crew) (*flow.Engine, *store.MemStore[flow.State]) {
	t.Helper()
	g, err := Build(c.callers(), Config{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	st := store.NewMemStore[flow.State]()
	eng, err := flow.New(g, st, nil, flow.WithMaxSteps(30))
	if err != nil {
		t.Fatalf("flow.New() error = %v", err)
	}
	return eng, st
}

func drain(t *testing.T, ch <-chan flow.Snapshot) []flow.Snapshot {
	t.Helper()
	var out []flow.Snapshot
	for snap := range ch {
		out = append(out, snap)
	}
	if len(out) == 0 {
		t.Fatal("stream closed without snapshots")
	}
	return out
}

func initialState(task string) flow.State {
	return flow.State{Messages: []flow.Message{{Author: "user", Content: task}}}
}

func TestBuildRejectsMissingCallers(t *testing.T) {
	c := defaultCrew().callers()
	c.Coder = nil
	_, err := Build(c, Config{})
	if err == nil || !strings.Contains(err.Error(), NodeCoder) {
		t.Errorf("Build() error = %v, want missing Coder caller", err)
	}
}

func TestRunSuspendsAtHypothesisReview(t *testing.T) {
	c := defaultCrew()
	eng, st := newEngine(t, c)
	ctx := context.Background()

	ch, err := eng.Start(ctx, "t1", initialState("study defect rates"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	snaps := drain(t, ch)

	pending := snaps[len(snaps)-1]
	if pending.Status != flow.StatusPendingHumanInput {
		t.Fatalf("status = %q, want pending_human_input", pending.Status)
	}
	if pending.NodeID != NodeHumanReview {
		t.Errorf("pending at %q, want %q", pending.NodeID, NodeHumanReview)
	}
	if !strings.Contains(pending.Prompt, "H1") {
		t.Errorf("Prompt = %q, want it to quote the hypothesis", pending.Prompt)
	}
	if got := pending.State.Slot(SlotHypothesis).Text(); !strings.Contains(got, "H1") {
		t.Errorf("hypothesis slot = %q", got)
	}

	rec, err := st.LoadLatest(ctx, "t1")
	if err != nil || rec.NodeID != NodeHypothesis {
		t.Errorf("latest checkpoint = %+v, %v; want at Hypothesis", rec, err)
	}
}

func TestFullRunToReport(t *testing.T) {
	c := defaultCrew()
	eng, st := newEngine(t, c)
	ctx := context.Background()

	ch, _ := eng.Start(ctx, "t1", initialState("study defect rates"))
	drain(t, ch)

	ch, err := eng.Resume(ctx, "t1", flow.HumanInput{Choice: ChoiceContinue})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	snaps := drain(t, ch)

	last := snaps[len(snaps)-1]
	if last.Status != flow.StatusCompleted {
		t.Fatalf("terminal status = %q (%s), want completed", last.Status, last.Reason)
	}
	if got := last.State.Slot(SlotReport).Text(); got != "final report text" {
		t.Errorf("report slot = %q", got)
	}
	if c.planner.CallCount() != 2 {
		t.Errorf("planner calls = %d, want 2 (dispatch then finish)", c.planner.CallCount())
	}
	if c.searcher.CallCount() != 1 || c.coder.CallCount() != 0 {
		t.Errorf("worker calls = searcher %d coder %d, want 1/0",
			c.searcher.CallCount(), c.coder.CallCount())
	}
	if c.noteTaker.CallCount() != 0 {
		t.Errorf("note taker calls = %d, want 0 below the compaction threshold", c.noteTaker.CallCount())
	}

	// Checkpoint history is contiguous from step 0.
	recs, err := st.History(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	for i, rec := range recs {
		if rec.Step != i {
			t.Errorf("record %d has step %d", i, rec.Step)
		}
	}
}

func TestRegenerateLoopsBackToHypothesis(t *testing.T) {
	c := defaultCrew()
	c.hypothesis = agent.NewMock("H1 first draft", "H2 revised draft")
	eng, _ := newEngine(t, c)
	ctx := context.Background()

	ch, _ := eng.Start(ctx, "t1", initialState("study defect rates"))
	drain(t, ch)

	ch, err := eng.Resume(ctx, "t1", flow.HumanInput{
		Choice:            ChoiceRegenerate,
		ModificationAreas: []string{"narrow the scope"},
	})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	snaps := drain(t, ch)

	pending := snaps[len(snaps)-1]
	if pending.Status != flow.StatusPendingHumanInput {
		t.Fatalf("status = %q, want pending again after regeneration", pending.Status)
	}
	if got := pending.State.Slot(SlotHypothesis).Text(); !strings.Contains(got, "H2") {
		t.Errorf("hypothesis slot = %q, want the revised draft", got)
	}
	if c.hypothesis.CallCount() != 2 {
		t.Fatalf("hypothesis calls = %d, want 2", c.hypothesis.CallCount())
	}
	// The second generation saw the reviewer's guidance.
	second := c.hypothesis.Calls[1]
	var sawGuidance bool
	for _, m := range second.Messages {
		if strings.Contains(m.Content, "narrow the scope") {
			sawGuidance = true
		}
	}
	if !sawGuidance {
		t.Error("modification areas not passed to the regenerating node")
	}
	// And cleared them once addressed.
	if pending.State.ModificationAreas != nil {
		t.Errorf("ModificationAreas = %v, want cleared", pending.State.ModificationAreas)
	}
}

func TestAbortAtReview(t *testing.T) {
	c := defaultCrew()
	eng, _ := newEngine(t, c)
	ctx := context.Background()

	ch, _ := eng.Start(ctx, "t1", initialState("study defect rates"))
	drain(t, ch)

	ch, err := eng.Resume(ctx, "t1", flow.HumanInput{Aborted: true})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	snaps := drain(t, ch)
	if snaps[len(snaps)-1].Status != flow.StatusAborted {
		t.Fatalf("status = %q, want aborted", snaps[len(snaps)-1].Status)
	}
	if c.planner.CallCount() != 0 {
		t.Errorf("planner calls = %d, want 0 after abort", c.planner.CallCount())
	}
}

func TestRevisionLoopReturnsToWorker(t *testing.T) {
	c := defaultCrew()
	c.quality = agent.NewMock("REVISION: add primary sources", "APPROVED: good now")
	c.searcher = agent.NewMock("findings v1", "findings v2")
	eng, _ := newEngine(t, c)
	ctx := context.Background()

	ch, _ := eng.Start(ctx, "t1", initialState("study defect rates"))
	drain(t, ch)
	ch, err := eng.Resume(ctx, "t1", flow.HumanInput{Choice: ChoiceContinue})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	snaps := drain(t, ch)

	last := snaps[len(snaps)-1]
	if last.Status != flow.StatusCompleted {
		t.Fatalf("terminal status = %q (%s), want completed", last.Status, last.Reason)
	}
	if c.searcher.CallCount() != 2 {
		t.Errorf("searcher calls = %d, want 2 (initial plus revision)", c.searcher.CallCount())
	}
	if c.quality.CallCount() != 2 {
		t.Errorf("quality calls = %d, want 2", c.quality.CallCount())
	}
	if got := last.State.Slot(SlotSearcher).Text(); got != "findings v2" {
		t.Errorf("searcher slot = %q, want the revised findings", got)
	}
	if last.State.NeedsRevision {
		t.Error("NeedsRevision should be cleared after approval")
	}
}

func TestEntrySkipsHypothesisWhenPresent(t *testing.T) {
	c := defaultCrew()
	eng, _ := newEngine(t, c)
	ctx := context.Background()

	s := initialState("study defect rates")
	s.Slots = map[string]flow.SlotValue{
		SlotHypothesis: flow.AuthoredSlot(NodeHypothesis, "H0 provided upfront"),
	}
	ch, _ := eng.Start(ctx, "t1", s)
	snaps := drain(t, ch)

	if snaps[len(snaps)-1].Status != flow.StatusCompleted {
		t.Fatalf("status = %q, want completed without any review stop", snaps[len(snaps)-1].Status)
	}
	if c.hypothesis.CallCount() != 0 {
		t.Errorf("hypothesis calls = %d, want 0", c.hypothesis.CallCount())
	}
}

func TestNoteTakerCompaction(t *testing.T) {
	noteTaker := agent.NewMock("the condensed story")
	h := noteTakerHandler(noteTaker, Config{CompactThreshold: 10, CompactHead: 2, CompactTail: 2})

	msgs := make([]flow.Message, 15)
	for i := range msgs {
		msgs[i] = flow.Message{Author: "n", Content: "m"}
	}
	s := flow.State{Messages: msgs}

	delta, err := h.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if delta.Compact == nil {
		t.Fatal("expected a compaction delta above the threshold")
	}
	got, err := s.Apply(delta, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// head 2 + summary 1 + tail 2
	if len(got.Messages) != 5 {
		t.Errorf("log length = %d, want 5", len(got.Messages))
	}
	if !strings.Contains(got.Messages[2].Content, "the condensed story") {
		t.Errorf("summary message = %+v", got.Messages[2])
	}

	// Below threshold: no call, no delta.
	short := flow.State{Messages: msgs[:5]}
	delta, err = h.Run(context.Background(), short)
	if err != nil || !delta.IsZero() {
		t.Errorf("short log: delta = %+v, err = %v; want no-op", delta, err)
	}
	if noteTaker.CallCount() != 1 {
		t.Errorf("note taker calls = %d, want 1", noteTaker.CallCount())
	}
}

func TestNewThreadID(t *testing.T) {
	a, b := NewThreadID(), NewThreadID()
	if a == b {
		t.Error("thread ids should be unique")
	}
	if !strings.HasPrefix(a, "thread-") {
		t.Errorf("thread id = %q", a)
	}
}
