package tool

import (
	"context"
	"sync"
)

// MockTool is a scripted Tool for tests: fixed output or error, call
// capture for assertions.
type MockTool struct {
	ToolName string
	Desc     string
	Output   map[string]any
	Err      error

	mu    sync.Mutex
	calls []map[string]any
}

// Name implements Tool.
func (m *MockTool) Name() string { return m.ToolName }

// Description implements Tool.
func (m *MockTool) Description() string { return m.Desc }

// Call implements Tool.
func (m *MockTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Output, nil
}

// Calls returns the inputs received so far.
func (m *MockTool) Calls() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.calls))
	copy(out, m.calls)
	return out
}
