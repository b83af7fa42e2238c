package flow

import (
	"encoding/json"
	"fmt"
)

// Message is one entry in the shared conversation log.
//
// The log is append-only: handlers contribute new messages through deltas
// and never rewrite history. Author is the name of the node (or human gate)
// that produced the message.
type Message struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// SlotKind discriminates the SlotValue union.
type SlotKind string

const (
	// KindEmpty is the zero value: the slot has never been written, or was
	// explicitly cleared.
	KindEmpty SlotKind = ""

	// KindText holds plain text with no recorded author.
	KindText SlotKind = "text"

	// KindAuthored holds text together with the node that produced it.
	KindAuthored SlotKind = "authored"
)

// SlotValue is a tagged union over the three shapes a slot can take:
// empty, plain text, or authored text. Use the constructors rather than
// building values by hand; they keep the tag and payload consistent.
type SlotValue struct {
	Kind    SlotKind `json:"kind,omitempty"`
	Author  string   `json:"author,omitempty"`
	Content string   `json:"content,omitempty"`
}

// EmptySlot returns the empty variant.
func EmptySlot() SlotValue { return SlotValue{} }

// TextSlot returns a plain-text variant.
func TextSlot(content string) SlotValue {
	return SlotValue{Kind: KindText, Content: content}
}

// AuthoredSlot returns a variant carrying both content and its producer.
func AuthoredSlot(author, content string) SlotValue {
	return SlotValue{Kind: KindAuthored, Author: author, Content: content}
}

// IsEmpty reports whether the slot holds no value.
func (v SlotValue) IsEmpty() bool { return v.Kind == KindEmpty }

// Text returns the slot's content regardless of variant. Empty slots
// return "".
func (v SlotValue) Text() string { return v.Content }

// State is the session state threaded through a run: the append-only
// message log, the named slots, the revision flag consumed by the quality
// gate, and the sender bookkeeping the routers rely on.
//
// Sender and LastSender are stamped by the engine after every applied
// delta; handlers never set them. ModificationAreas is transient guidance
// written only by the human gate.
type State struct {
	Messages          []Message            `json:"messages"`
	Slots             map[string]SlotValue `json:"slots,omitempty"`
	NeedsRevision     bool                 `json:"needs_revision,omitempty"`
	Sender            string               `json:"sender,omitempty"`
	LastSender        string               `json:"last_sender,omitempty"`
	ModificationAreas []string             `json:"modification_areas,omitempty"`
}

// Slot returns the named slot, or the empty variant if it was never
// written.
func (s State) Slot(name string) SlotValue {
	return s.Slots[name]
}

// LastMessage returns the most recent log entry, if any.
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy via a JSON round trip, so callers can hand
// state across goroutine boundaries without aliasing.
func (s State) Clone() (State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return State{}, fmt.Errorf("clone state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return State{}, fmt.Errorf("clone state: %w", err)
	}
	return out, nil
}

// copyForApply makes a structural copy deep enough for Apply to mutate
// without touching the original: fresh message slice, fresh slot map.
func (s State) copyForApply() State {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.Slots = make(map[string]SlotValue, len(s.Slots))
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	if s.ModificationAreas != nil {
		out.ModificationAreas = make([]string, len(s.ModificationAreas))
		copy(out.ModificationAreas, s.ModificationAreas)
	}
	return out
}

// Compaction trims the middle of the message log: the first Head and last
// Tail entries are kept verbatim, everything between is replaced by the
// Summary messages.
type Compaction struct {
	Head    int       `json:"head"`
	Tail    int       `json:"tail"`
	Summary []Message `json:"summary"`
}

// Delta is a node's proposed change to the state. Zero-value fields leave
// the corresponding part of the state untouched:
//
//   - Slots: writes, checked against the writing node's declared ownership
//   - Message: at most one appended log entry
//   - NeedsRevision: nil means unchanged
//   - ModificationAreas: non-nil replaces the transient guidance
//   - ClearModificationAreas: resets the guidance (human gate use)
//   - Compact: trims the message log before the message append
type Delta struct {
	Slots                  map[string]SlotValue
	Message                *Message
	NeedsRevision          *bool
	ModificationAreas      []string
	ClearModificationAreas bool
	Compact                *Compaction
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return len(d.Slots) == 0 && d.Message == nil && d.NeedsRevision == nil &&
		d.ModificationAreas == nil && !d.ClearModificationAreas && d.Compact == nil
}

// Apply merges a delta into the state and returns the result. The merge
// is all-or-nothing: every slot write is validated against owned before
// any part of the state changes, and a compaction with out-of-range
// bounds rejects the whole delta.
//
// An owned set of nil disables the ownership check (used for the human
// gate and for engine-synthesized deltas).
func (s State) Apply(d Delta, owned map[string]bool) (State, error) {
	for name := range d.Slots {
		if owned != nil && !owned[name] {
			return State{}, &SlotOwnershipError{Slot: name}
		}
	}
	if c := d.Compact; c != nil {
		if c.Head < 0 || c.Tail < 0 || c.Head+c.Tail > len(s.Messages) {
			return State{}, fmt.Errorf("compaction bounds head=%d tail=%d exceed log of %d: %w",
				c.Head, c.Tail, len(s.Messages), ErrBadCompaction)
		}
	}

	out := s.copyForApply()
	if c := d.Compact; c != nil {
		out.Messages = spliceLog(out.Messages, c.Head, c.Tail, c.Summary)
	}
	for name, v := range d.Slots {
		out.Slots[name] = v
	}
	if d.Message != nil {
		out.Messages = append(out.Messages, *d.Message)
	}
	if d.NeedsRevision != nil {
		out.NeedsRevision = *d.NeedsRevision
	}
	if d.ClearModificationAreas {
		out.ModificationAreas = nil
	}
	if d.ModificationAreas != nil {
		out.ModificationAreas = make([]string, len(d.ModificationAreas))
		copy(out.ModificationAreas, d.ModificationAreas)
	}
	return out, nil
}

func spliceLog(msgs []Message, head, tail int, summary []Message) []Message {
	if head+tail >= len(msgs) {
		// Nothing in the middle to replace.
		return msgs
	}
	out := make([]Message, 0, head+len(summary)+tail)
	out = append(out, msgs[:head]...)
	out = append(out, summary...)
	out = append(out, msgs[len(msgs)-tail:]...)
	return out
}

// boolPtr is a convenience for Delta.NeedsRevision.
func boolPtr(b bool) *bool { return &b }

// SetNeedsRevision returns a pointer suitable for Delta.NeedsRevision.
func SetNeedsRevision(v bool) *bool { return boolPtr(v) }
