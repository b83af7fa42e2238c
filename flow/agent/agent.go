// Package agent abstracts the external model call a workflow node makes.
//
// The engine never talks to a model directly; node handlers build a View
// of the session and hand it to a Caller. Provider adapters for OpenAI,
// Anthropic, and Gemini live in subpackages; tests use Mock.
package agent

import (
	"context"
	"sort"
	"strings"
)

// Conversation roles understood by the provider adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to a model.
type Message struct {
	Role    string
	Content string
}

// View is the model-facing projection of a workflow's state: the
// conversation so far plus any slot contents the node wants the model to
// see. Slots map slot names to their text.
type View struct {
	Messages []Message
	Slots    map[string]string
}

// SlotPreamble renders the view's slots as a deterministic text block
// the provider adapters prepend as system context. Empty when there are
// no slots.
func (v View) SlotPreamble() string {
	if len(v.Slots) == 0 {
		return ""
	}
	names := make([]string, 0, len(v.Slots))
	for name := range v.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Shared workspace:\n")
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(v.Slots[name])
		sb.WriteString("\n")
	}
	return sb.String()
}

// Result is a model's reply.
type Result struct {
	Text string
}

// Caller invokes a model. Implementations must be safe for concurrent
// use and must respect ctx cancellation, since the engine applies
// per-node timeouts through the context.
type Caller interface {
	Invoke(ctx context.Context, view View) (Result, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, view View) (Result, error)

// Invoke calls f.
func (f CallerFunc) Invoke(ctx context.Context, view View) (Result, error) {
	return f(ctx, view)
}
