package flow

import "time"

// Options holds engine configuration. Built from functional options at
// New; validated there, not here.
type Options struct {
	// MaxSteps is the hard ceiling on executed steps per run. Required
	// and must be positive; there is no unlimited mode, because a cyclic
	// graph plus a misbehaving model would otherwise loop forever.
	MaxSteps int

	// NodeTimeout bounds each handler invocation unless the handler
	// carries its own policy. Zero means no engine-imposed timeout.
	NodeTimeout time.Duration

	// Retry applies to every handler invocation unless the handler
	// carries its own policy. Nil means a single attempt.
	Retry *RetryPolicy

	// Metrics receives per-step and per-run observations when set.
	Metrics *Metrics

	// SnapshotBuffer is the capacity of the snapshot channel returned by
	// Start and Resume. A consumer that falls behind blocks the run, by
	// the single-writer design, so size this for the expected burst.
	SnapshotBuffer int
}

// Option mutates Options.
type Option func(*Options)

// WithMaxSteps sets the per-run step ceiling. Mandatory.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithNodeTimeout sets the default per-handler timeout.
func WithNodeTimeout(d time.Duration) Option {
	return func(o *Options) { o.NodeTimeout = d }
}

// WithRetry sets the default retry policy for handler invocations.
func WithRetry(p RetryPolicy) Option {
	return func(o *Options) { o.Retry = &p }
}

// WithMetrics attaches a Prometheus metrics set.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithSnapshotBuffer sets the snapshot channel capacity.
func WithSnapshotBuffer(n int) Option {
	return func(o *Options) { o.SnapshotBuffer = n }
}

func buildOptions(opts []Option) Options {
	o := Options{SnapshotBuffer: 16}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
