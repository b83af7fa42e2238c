// Package flow executes directed graphs of agent nodes over a shared
// session state. Nodes propose deltas, routers choose successors, every
// applied step is checkpointed, and runs suspend cleanly at human gates
// so they can be resumed later, or after a crash, from the last
// checkpoint.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/flowgraph-go/flow/emit"
	"github.com/dshills/flowgraph-go/flow/store"
)

// Status is the lifecycle state reported on snapshots.
type Status string

const (
	// StatusRunning marks a snapshot taken after a successfully applied
	// step; the run continues.
	StatusRunning Status = "running"

	// StatusPendingHumanInput marks a run suspended at a gate. The
	// stream ends; Resume continues it.
	StatusPendingHumanInput Status = "pending_human_input"

	// StatusCompleted means the graph routed to End.
	StatusCompleted Status = "completed"

	// StatusAborted means a human declined to continue, the context was
	// cancelled, or a checkpoint write failed.
	StatusAborted Status = "aborted"

	// StatusIterationLimit means the step ceiling was reached before the
	// graph terminated.
	StatusIterationLimit Status = "iteration_limit"

	// StatusRoutingError means a router produced a label its table does
	// not declare.
	StatusRoutingError Status = "routing_error"
)

// Terminal reports whether the status ends a run for good. A pending run
// is not terminal: it is waiting, not finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusIterationLimit, StatusRoutingError:
		return true
	}
	return false
}

// Snapshot is one observation of a run, streamed from Start and Resume.
// The last snapshot on a stream is either terminal or pending; Reason
// explains aborts and routing errors, Prompt carries the gate's question
// on pending snapshots.
type Snapshot struct {
	ThreadID string
	Step     int
	NodeID   string
	State    State
	Status   Status
	Reason   string
	Prompt   string
}

// Engine drives graph runs. It is safe for concurrent use across
// threads; within one thread it enforces a single writer, so a second
// Start or Resume while a run is in flight fails with ErrThreadBusy.
type Engine struct {
	graph   *Graph
	store   store.Store[State]
	emitter emit.Emitter
	opts    Options

	mu     sync.Mutex
	active map[string]bool
}

// New builds an engine over a validated graph and a checkpoint store.
// A nil emitter disables event emission. WithMaxSteps is mandatory.
func New(g *Graph, st store.Store[State], emitter emit.Emitter, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, &EngineError{Code: "NO_GRAPH", Message: "engine requires a graph"}
	}
	if st == nil {
		return nil, &EngineError{Code: "NO_STORE", Message: "engine requires a checkpoint store"}
	}
	o := buildOptions(opts)
	if o.MaxSteps <= 0 {
		return nil, &EngineError{Code: "BAD_MAX_STEPS", Message: "MaxSteps must be set and positive"}
	}
	if emitter == nil {
		emitter = emit.Null{}
	}
	return &Engine{
		graph:   g,
		store:   st,
		emitter: emitter,
		opts:    o,
		active:  make(map[string]bool),
	}, nil
}

// Start begins a new run for threadID from the given initial state. The
// initial state is persisted as step 0 before the first node executes,
// so a crash at any point leaves the thread resumable.
//
// The returned channel streams one snapshot per applied step and closes
// after a terminal or pending snapshot.
func (e *Engine) Start(ctx context.Context, threadID string, initial State) (<-chan Snapshot, error) {
	if threadID == "" {
		return nil, &EngineError{Code: "EMPTY_THREAD_ID", Message: "thread id must not be empty"}
	}
	st, err := initial.Clone()
	if err != nil {
		return nil, err
	}
	if err := e.acquire(threadID); err != nil {
		return nil, err
	}
	if err := e.store.SaveStep(ctx, threadID, 0, startNode, st); err != nil {
		e.release(threadID)
		return nil, fmt.Errorf("persist initial state: %w", err)
	}
	e.emitter.Emit(emit.Event{
		ThreadID: threadID, NodeID: startNode, Msg: "run started", Time: time.Now(),
	})

	ch := make(chan Snapshot, e.opts.SnapshotBuffer)
	go e.run(ctx, threadID, st, 0, startNode, nil, ch)
	return ch, nil
}

// Resume continues a suspended or interrupted run from its latest
// checkpoint. When the thread is suspended at a gate, input is handed to
// the gate; input.Aborted ends the run immediately, before any node
// executes. Resuming a thread that is not waiting at a gate replays
// routing from the checkpoint and ignores input.Choice.
func (e *Engine) Resume(ctx context.Context, threadID string, input HumanInput) (<-chan Snapshot, error) {
	if threadID == "" {
		return nil, &EngineError{Code: "EMPTY_THREAD_ID", Message: "thread id must not be empty"}
	}
	if err := e.acquire(threadID); err != nil {
		return nil, err
	}
	rec, err := e.store.LoadLatest(ctx, threadID)
	if err != nil {
		e.release(threadID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	e.emitter.Emit(emit.Event{
		ThreadID: threadID, Step: rec.Step, NodeID: rec.NodeID, Msg: "run resumed", Time: time.Now(),
	})

	ch := make(chan Snapshot, e.opts.SnapshotBuffer)
	go e.run(ctx, threadID, rec.State, rec.Step, rec.NodeID, &input, ch)
	return ch, nil
}

func (e *Engine) acquire(threadID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[threadID] {
		return fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	e.active[threadID] = true
	return nil
}

func (e *Engine) release(threadID string) {
	e.mu.Lock()
	delete(e.active, threadID)
	e.mu.Unlock()
}

// run is the single-threaded progression of one thread. st and step
// describe the last persisted checkpoint; from is the node that produced
// it. pending carries human input until a gate consumes it.
func (e *Engine) run(ctx context.Context, threadID string, st State, step int, from string, pending *HumanInput, ch chan<- Snapshot) {
	defer close(ch)
	defer e.release(threadID)

	finish := func(node string, status Status, reason string) {
		e.emitter.Emit(emit.Event{
			ThreadID: threadID, Step: step, NodeID: node, Msg: "run finished",
			Meta: map[string]any{"status": string(status), "reason": reason}, Time: time.Now(),
		})
		e.opts.Metrics.observeRunFinished(status)
		ch <- Snapshot{
			ThreadID: threadID, Step: step, NodeID: node, State: st,
			Status: status, Reason: reason,
		}
	}

	if pending != nil && pending.Aborted {
		finish(from, StatusAborted, "aborted by human input")
		return
	}

	for {
		node, err := e.graph.next(from, st)
		if err != nil {
			finish(from, StatusRoutingError, err.Error())
			return
		}
		if node == End {
			finish(from, StatusCompleted, "")
			return
		}
		if err := ctx.Err(); err != nil {
			finish(node, StatusAborted, err.Error())
			return
		}
		spec, ok := e.graph.node(node)
		if !ok {
			finish(from, StatusRoutingError, (&RoutingError{From: from, Label: node}).Error())
			return
		}
		if step >= e.opts.MaxSteps {
			finish(node, StatusIterationLimit, fmt.Sprintf("step ceiling %d reached", e.opts.MaxSteps))
			return
		}

		var (
			delta   Delta
			failed  bool
			elapsed time.Duration
		)
		if spec.gate != nil {
			if pending == nil {
				prompt := ""
				if spec.gate.Prompt != nil {
					prompt = spec.gate.Prompt(st)
				}
				e.opts.Metrics.observeSuspension()
				e.emitter.Emit(emit.Event{
					ThreadID: threadID, Step: step, NodeID: node,
					Msg: "suspended for human input", Time: time.Now(),
				})
				ch <- Snapshot{
					ThreadID: threadID, Step: step, NodeID: node, State: st,
					Status: StatusPendingHumanInput, Prompt: prompt,
				}
				return
			}
			delta = spec.gate.Apply(st, *pending)
			pending = nil
		} else {
			started := time.Now()
			delta, err = invokeWithPolicy(ctx, spec.handler, st, e.effectivePolicy(spec.handler))
			elapsed = time.Since(started)
			if err != nil {
				failed = true
				nerr := &NodeError{Message: "handler failed", Code: "HANDLER_ERROR", NodeID: node, Cause: err}
				e.emitter.Emit(emit.Event{
					ThreadID: threadID, Step: step, NodeID: node, Msg: "node failed",
					Meta: map[string]any{"error": nerr.Error()}, Time: time.Now(),
				})
				delta = errorDelta(node, err)
			}
		}

		owned := spec.slots
		if spec.gate != nil {
			owned = nil // a reviewer may touch any slot
		}
		next, err := st.Apply(delta, owned)
		if err != nil {
			// Invalid delta, same containment as a failed handler: the
			// whole delta is dropped and only the error is recorded.
			failed = true
			e.emitter.Emit(emit.Event{
				ThreadID: threadID, Step: step, NodeID: node, Msg: "delta rejected",
				Meta: map[string]any{"error": err.Error()}, Time: time.Now(),
			})
			next, _ = st.Apply(errorDelta(node, err), nil)
		} else if delta.NeedsRevision != nil && *delta.NeedsRevision {
			e.opts.Metrics.observeRevision()
		}
		next.LastSender = next.Sender
		next.Sender = node

		step++
		if err := e.store.SaveStep(ctx, threadID, step, node, next); err != nil {
			step--
			finish(node, StatusAborted, fmt.Sprintf("checkpoint save failed: %v", err))
			return
		}
		st = next
		e.opts.Metrics.observeStep(node, elapsed, failed)
		e.emitter.Emit(emit.Event{
			ThreadID: threadID, Step: step, NodeID: node, Msg: "step completed",
			Meta: map[string]any{"failed": failed}, Time: time.Now(),
		})
		ch <- Snapshot{
			ThreadID: threadID, Step: step, NodeID: node, State: st, Status: StatusRunning,
		}
		from = node
	}
}

func (e *Engine) effectivePolicy(h Handler) NodePolicy {
	pol := NodePolicy{Timeout: e.opts.NodeTimeout, Retry: e.opts.Retry}
	if pp, ok := h.(PolicyProvider); ok {
		override := pp.Policy()
		if override.Timeout > 0 {
			pol.Timeout = override.Timeout
		}
		if override.Retry != nil {
			pol.Retry = override.Retry
		}
	}
	return pol
}
