package flow

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine entry points and state operations.
var (
	// ErrBadCompaction reports a compaction directive whose head/tail
	// bounds do not fit the current message log.
	ErrBadCompaction = errors.New("invalid compaction bounds")

	// ErrThreadBusy reports a Start or Resume on a thread that already
	// has an in-flight run. One writer per thread.
	ErrThreadBusy = errors.New("thread already running")

	// ErrUnknownThread reports a Resume for a thread with no persisted
	// checkpoints.
	ErrUnknownThread = errors.New("unknown thread")
)

// EngineError represents a configuration or construction failure detected
// before any step executes.
//
// Codes:
//   - "NO_GRAPH": engine built without a graph
//   - "NO_STORE": engine built without a checkpoint store
//   - "BAD_MAX_STEPS": step ceiling missing or not positive
//   - "EMPTY_THREAD_ID": Start/Resume called with an empty thread id
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error [%s]: %s", e.Code, e.Message)
}

// NodeError wraps a handler failure with the node it came from. The
// engine converts these into error messages on the log rather than
// letting them escape, so callers normally only see NodeError values
// inside emitted events.
type NodeError struct {
	Message string
	Code    string
	NodeID  string
	Cause   error
}

func (e *NodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("node %s [%s]: %s: %v", e.NodeID, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("node %s [%s]: %s", e.NodeID, e.Code, e.Message)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// SlotOwnershipError rejects a delta that writes a slot the node does not
// own. The whole delta is discarded when this is returned.
type SlotOwnershipError struct {
	Slot string
}

func (e *SlotOwnershipError) Error() string {
	return fmt.Sprintf("slot %q written by a node that does not own it", e.Slot)
}

// RoutingError reports a router producing a label its dispatch table does
// not declare. This is a graph construction defect, so the run terminates
// with StatusRoutingError instead of guessing a successor.
type RoutingError struct {
	From  string
	Label string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("router at %q produced undeclared label %q", e.From, e.Label)
}
