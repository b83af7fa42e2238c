package agent

import (
	"context"
	"sync"
)

// Mock is a scripted Caller for tests. Responses are returned in order;
// when they run out the last one repeats. Err, when set, fails every
// invocation. Calls records each received view for assertions.
type Mock struct {
	mu        sync.Mutex
	Responses []Result
	Err       error
	Calls     []View
	next      int
}

// NewMock scripts a mock with the given reply texts.
func NewMock(texts ...string) *Mock {
	responses := make([]Result, len(texts))
	for i, t := range texts {
		responses[i] = Result{Text: t}
	}
	return &Mock{Responses: responses}
}

// Invoke implements Caller.
func (m *Mock) Invoke(ctx context.Context, view View) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, view)
	if m.Err != nil {
		return Result{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Result{}, nil
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.next++
	return m.Responses[idx], nil
}

// CallCount reports how many invocations the mock has received.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
