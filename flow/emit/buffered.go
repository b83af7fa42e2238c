package emit

import "sync"

// BufferedEmitter keeps every event in memory. Intended for tests and
// for post-run analysis of a single workflow; it grows without bound, so
// do not attach it to a long-lived production engine.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events []Event
}

// NewBufferedEmitter returns an empty buffer.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{}
}

// Emit appends the event.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

// Events returns a copy of everything recorded, in arrival order.
func (b *BufferedEmitter) Events() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// ByThread returns recorded events for one thread, in arrival order.
func (b *BufferedEmitter) ByThread(threadID string) []Event {
	return b.filter(func(e Event) bool { return e.ThreadID == threadID })
}

// ByMsg returns recorded events with the given message.
func (b *BufferedEmitter) ByMsg(msg string) []Event {
	return b.filter(func(e Event) bool { return e.Msg == msg })
}

// Len reports how many events are buffered.
func (b *BufferedEmitter) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Reset discards everything recorded so far.
func (b *BufferedEmitter) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

func (b *BufferedEmitter) filter(keep func(Event) bool) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, e := range b.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
