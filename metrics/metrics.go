// Package metrics holds the Prometheus collectors of the rpc proxy.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "rpc_proxy"

// Call outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeRemoteError  = "remote_error"
	OutcomeTimeout      = "timeout"
	OutcomeChannelError = "channel_error"
	OutcomeCanceled     = "canceled"
	OutcomeRejected     = "rejected"
)

// Metrics contains the proxy level collectors.
type Metrics struct {
	Calls           *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	InFlight        *prometheus.GaugeVec
	LateReplies     prometheus.Counter
	MalformedFrames prometheus.Counter
	Emits           *prometheus.CounterVec
	LifecycleDrops  *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "total",
				Help:      "Total number of request/reply calls by outcome",
			},
			[]string{"destination", "operation", "outcome"},
		),

		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "duration_seconds",
				Help:      "Time from publish to resolution of a call",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"destination", "operation"},
		),

		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "in_flight",
				Help:      "Pending calls awaiting a reply",
			},
			[]string{"destination"},
		),

		LateReplies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "late_replies_total",
				Help:      "Replies discarded because no pending call matched their correlation id",
			},
		),

		MalformedFrames: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "malformed_frames_total",
				Help:      "Inbound reply frames that could not be decoded",
			},
		),

		Emits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emits",
				Name:      "total",
				Help:      "Fire-and-forget publishes by result",
			},
			[]string{"destination", "operation", "result"},
		),

		LifecycleDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "dropped_total",
				Help:      "Lifecycle events that could not be emitted",
			},
			[]string{"status"},
		),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Calls, m.CallDuration, m.InFlight, m.LateReplies, m.MalformedFrames, m.Emits, m.LifecycleDrops,
	}
}

// Register registers the collectors on reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry returns a registry carrying the proxy collectors plus Go runtime metrics.
func NewRegistry(m *Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, err
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg, nil
}

// RecordCall counts a finished call and its latency.
func (m *Metrics) RecordCall(destination, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.Calls.WithLabelValues(destination, operation, outcome).Inc()
	if outcome != OutcomeRejected {
		m.CallDuration.WithLabelValues(destination, operation).Observe(d.Seconds())
	}
}

// AddInFlight moves the pending call gauge of a destination by delta.
func (m *Metrics) AddInFlight(destination string, delta float64) {
	if m == nil {
		return
	}

	m.InFlight.WithLabelValues(destination).Add(delta)
}

// RecordLateReply counts a discarded reply.
func (m *Metrics) RecordLateReply() {
	if m == nil {
		return
	}

	m.LateReplies.Inc()
}

// RecordMalformedFrame counts an undecodable reply frame.
func (m *Metrics) RecordMalformedFrame() {
	if m == nil {
		return
	}

	m.MalformedFrames.Inc()
}

// RecordEmit counts a fire-and-forget publish.
func (m *Metrics) RecordEmit(destination, operation string, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	m.Emits.WithLabelValues(destination, operation, result).Inc()
}

// RecordLifecycleDrop counts a lifecycle event that failed to go out.
func (m *Metrics) RecordLifecycleDrop(status string) {
	if m == nil {
		return
	}

	m.LifecycleDrops.WithLabelValues(status).Inc()
}
