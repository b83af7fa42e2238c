package flow

import (
	"context"
	"fmt"
)

// Handler is the unit of work attached to a graph node. A handler reads
// the current state and proposes a delta; it never mutates the state it
// is given.
//
// A returned error does not abort the run: the engine converts it into a
// single error-authored log message, leaves every slot untouched, and
// routes onward as if the node had succeeded. Handlers wrapping external
// calls should respect ctx cancellation.
type Handler interface {
	Run(ctx context.Context, s State) (Delta, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, s State) (Delta, error)

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, s State) (Delta, error) {
	return f(ctx, s)
}

// ErrorAuthor is the author stamped on log messages the engine
// synthesizes from handler failures. Using a reserved author keeps
// failure records distinguishable from node output, so routers matching
// on message content never confuse the two.
const ErrorAuthor = "error"

// errorDelta converts a handler failure into the delta the engine applies
// in its place: one error-authored message, nothing else.
func errorDelta(node string, err error) Delta {
	return Delta{
		Message: &Message{
			Author:  ErrorAuthor,
			Content: fmt.Sprintf("node %s failed: %v", node, err),
		},
	}
}
