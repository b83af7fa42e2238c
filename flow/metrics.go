package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the engine's Prometheus instrumentation. All collectors are
// registered with the supplied registerer at construction; the engine
// records into them when the metrics set is attached via WithMetrics.
type Metrics struct {
	steps        *prometheus.CounterVec
	nodeFailures *prometheus.CounterVec
	revisions    prometheus.Counter
	suspensions  prometheus.Counter
	runs         *prometheus.CounterVec
	stepLatency  *prometheus.HistogramVec
}

// NewMetrics builds and registers the metric set. Pass
// prometheus.DefaultRegisterer for the global registry, or a private
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "steps_total",
			Help:      "Executed steps by node.",
		}, []string{"node"}),
		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "node_failures_total",
			Help:      "Handler failures converted to error messages, by node.",
		}, []string{"node"}),
		revisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "revisions_total",
			Help:      "Revision requests raised by quality review.",
		}),
		suspensions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "human_suspensions_total",
			Help:      "Runs suspended waiting for human input.",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgraph",
			Name:      "runs_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowgraph",
			Name:      "step_latency_seconds",
			Help:      "Handler execution latency by node.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"node"}),
	}
}

func (m *Metrics) observeStep(node string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(node).Inc()
	m.stepLatency.WithLabelValues(node).Observe(d.Seconds())
	if failed {
		m.nodeFailures.WithLabelValues(node).Inc()
	}
}

func (m *Metrics) observeRevision() {
	if m == nil {
		return
	}
	m.revisions.Inc()
}

func (m *Metrics) observeSuspension() {
	if m == nil {
		return
	}
	m.suspensions.Inc()
}

func (m *Metrics) observeRunFinished(status Status) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}
