// Package emit carries the engine's observability events to pluggable
// backends: a structured log writer, an in-memory buffer for tests and
// post-run analysis, OpenTelemetry spans, or nothing at all.
package emit

// Emitter receives engine events. Emit must not block for long; a slow
// backend stalls the thread that produced the event. Implementations
// must be safe for concurrent use, since distinct threads emit
// concurrently.
type Emitter interface {
	Emit(event Event)
}

// Null discards every event. The engine substitutes it for a nil
// emitter.
type Null struct{}

// Emit does nothing.
func (Null) Emit(Event) {}
