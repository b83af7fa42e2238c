package flow

import "context"

// HumanInput is the reply fed back into a suspended run via Resume.
type HumanInput struct {
	// Choice is the reviewer's decision, interpreted by the gate's Apply
	// function (for example "continue" or "regenerate").
	Choice string

	// ModificationAreas is optional guidance on what to change; the gate
	// writes it into the state's transient ModificationAreas field.
	ModificationAreas []string

	// Aborted true ends the run with StatusAborted before any node
	// executes.
	Aborted bool
}

// Gate is a human-in-the-loop node. When the engine reaches a gate with
// no pending input it emits a pending_human_input snapshot and returns;
// the goroutine does not block waiting for a reply. Resume later feeds
// the input through Apply, whose delta is merged like any node delta but
// without slot-ownership limits, since a reviewer may clear or rewrite
// any slot.
type Gate struct {
	// Prompt renders the question to put to the reviewer. Carried on the
	// pending snapshot for the caller's UI; the engine does not interpret
	// it.
	Prompt func(s State) string

	// Apply folds the reviewer's input into a delta.
	Apply func(s State, in HumanInput) Delta
}

// InputChannel is request/response plumbing for callers that collect
// human input out of band (CLI prompt, HTTP long-poll, websocket). The
// engine itself never consumes one; it exists so transports share a
// shape.
type InputChannel interface {
	// Await blocks until input for the thread arrives or ctx is done.
	Await(ctx context.Context, threadID string) (HumanInput, error)

	// Provide delivers input for a waiting thread.
	Provide(ctx context.Context, threadID string, in HumanInput) error
}

// MemInputChannel is an in-memory InputChannel backed by per-thread
// channels. Suitable for tests and single-process CLIs.
type MemInputChannel struct {
	ch chan threadInput
}

type threadInput struct {
	threadID string
	input    HumanInput
}

// NewMemInputChannel returns a channel with a small delivery buffer.
func NewMemInputChannel() *MemInputChannel {
	return &MemInputChannel{ch: make(chan threadInput, 8)}
}

// Await waits for input addressed to threadID. Input for other threads
// is redelivered for their waiters.
func (m *MemInputChannel) Await(ctx context.Context, threadID string) (HumanInput, error) {
	for {
		select {
		case ti := <-m.ch:
			if ti.threadID == threadID {
				return ti.input, nil
			}
			select {
			case m.ch <- ti:
			case <-ctx.Done():
				return HumanInput{}, ctx.Err()
			}
		case <-ctx.Done():
			return HumanInput{}, ctx.Err()
		}
	}
}

// Provide delivers input for threadID.
func (m *MemInputChannel) Provide(ctx context.Context, threadID string, in HumanInput) error {
	select {
	case m.ch <- threadInput{threadID: threadID, input: in}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
