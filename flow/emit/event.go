package emit

import "time"

// Event is one observability record from the engine: a run started or
// finished, a step completed, a node failed, a thread suspended for
// human input. Meta carries message-specific detail such as the terminal
// status or an error string.
type Event struct {
	ThreadID string         `json:"threadID"`
	Step     int            `json:"step"`
	NodeID   string         `json:"nodeID"`
	Msg      string         `json:"msg"`
	Meta     map[string]any `json:"meta,omitempty"`
	Time     time.Time      `json:"time"`
}
