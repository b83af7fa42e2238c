// Package store defines durable checkpoint storage for workflow threads.
//
// A thread's history is an ordered sequence of step records: the step
// index, the node that produced the state, and the state itself. Step
// indices per thread start at 0 and increase by exactly one; stores
// reject regressions and reuse, which is what makes replay trustworthy.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by LoadLatest when the thread has no records.
var ErrNotFound = errors.New("no checkpoint found")

// ErrStepConflict is returned by SaveStep when the step index is not the
// next expected one for the thread: either it was already written or it
// would leave a gap.
var ErrStepConflict = errors.New("step index conflicts with history")

// StepRecord is one persisted checkpoint.
type StepRecord[S any] struct {
	Step   int
	NodeID string
	State  S
}

// Store persists per-thread checkpoint histories. Type parameter S is
// the state type; it must round-trip through JSON.
//
// Implementations must be safe for concurrent use across threads. Within
// one thread the engine is the single writer, so stores need not order
// concurrent writes to the same thread beyond rejecting conflicts.
type Store[S any] interface {
	// SaveStep appends a checkpoint. step must be exactly one past the
	// thread's latest step, or 0 for a new thread; anything else fails
	// with ErrStepConflict.
	SaveStep(ctx context.Context, threadID string, step int, nodeID string, state S) error

	// LoadLatest returns the highest-step record for the thread, or
	// ErrNotFound.
	LoadLatest(ctx context.Context, threadID string) (StepRecord[S], error)

	// History returns every record for the thread in ascending step
	// order. An unknown thread yields an empty slice, not an error.
	History(ctx context.Context, threadID string) ([]StepRecord[S], error)
}
