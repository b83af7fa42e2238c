package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests and single-process runs.
// Records are isolated by a JSON round trip on the way in and out, so a
// caller mutating a state after SaveStep cannot corrupt history.
type MemStore[S any] struct {
	mu      sync.RWMutex
	threads map[string][]StepRecord[S]
}

// NewMemStore returns an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{threads: make(map[string][]StepRecord[S])}
}

// SaveStep implements Store.
func (m *MemStore[S]) SaveStep(ctx context.Context, threadID string, step int, nodeID string, state S) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied, err := deepCopy(state)
	if err != nil {
		return fmt.Errorf("copy state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.threads[threadID]
	expected := 0
	if len(recs) > 0 {
		expected = recs[len(recs)-1].Step + 1
	}
	if step != expected {
		return fmt.Errorf("%w: got %d, expected %d", ErrStepConflict, step, expected)
	}
	m.threads[threadID] = append(recs, StepRecord[S]{Step: step, NodeID: nodeID, State: copied})
	return nil
}

// LoadLatest implements Store.
func (m *MemStore[S]) LoadLatest(ctx context.Context, threadID string) (StepRecord[S], error) {
	if err := ctx.Err(); err != nil {
		return StepRecord[S]{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.threads[threadID]
	if len(recs) == 0 {
		return StepRecord[S]{}, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	rec := recs[len(recs)-1]
	state, err := deepCopy(rec.State)
	if err != nil {
		return StepRecord[S]{}, fmt.Errorf("copy state: %w", err)
	}
	rec.State = state
	return rec, nil
}

// History implements Store.
func (m *MemStore[S]) History(ctx context.Context, threadID string) ([]StepRecord[S], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.threads[threadID]
	out := make([]StepRecord[S], 0, len(recs))
	for _, rec := range recs {
		state, err := deepCopy(rec.State)
		if err != nil {
			return nil, fmt.Errorf("copy state: %w", err)
		}
		rec.State = state
		out = append(out, rec)
	}
	return out, nil
}

func deepCopy[S any](state S) (S, error) {
	var out S
	data, err := json.Marshal(state)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
