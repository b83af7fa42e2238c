// Package tool defines the side-effecting capabilities an agent caller
// may consult while producing its reply: web fetches, lookups,
// calculations. The workflow engine never inspects tools; they belong
// entirely to the caller side of the agent boundary.
package tool

import "context"

// Tool is one named capability. Implementations validate their input,
// respect ctx cancellation, and return structured output.
type Tool interface {
	// Name is the unique identifier, lowercase with underscores, for
	// example "http_request" or "search_web".
	Name() string

	// Description explains the tool to the model choosing whether to
	// use it.
	Description() string

	// Call executes the tool. Input may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Set is a lookup table of tools by name.
type Set map[string]Tool

// NewSet indexes tools by their Name.
func NewSet(tools ...Tool) Set {
	s := make(Set, len(tools))
	for _, t := range tools {
		s[t.Name()] = t
	}
	return s
}

// Get returns the named tool, if registered.
func (s Set) Get(name string) (Tool, bool) {
	t, ok := s[name]
	return t, ok
}
