package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

const namespace = "devicesim"

// connectionStates lists every state exported by the connection_state gauge.
var connectionStates = []simulator.ConnectionState{
	simulator.StateDisconnected,
	simulator.StateConnecting,
	simulator.StateConnected,
	simulator.StateDisconnecting,
}

// Metrics exports simulator activity as Prometheus collectors.
type Metrics struct {
	publishes       *prometheus.CounterVec
	ticks           prometheus.Counter
	tickDuration    prometheus.Histogram
	connectAttempts *prometheus.CounterVec
	connectionState *prometheus.GaugeVec
}

// New registers the simulator collectors with reg.
// It panics if they are already registered, as promauto does.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"outcome"}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed publish ticks.",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time taken to publish one reading for every device.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		connectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Broker connection attempts by result.",
		}, []string{"result"}),
		connectionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current broker connection state, 0 otherwise.",
		}, []string{"state"}),
	}

	// Pre-create label values so series exist before the first event.
	for _, kind := range []simulator.OutcomeKind{
		simulator.OutcomeSuccess,
		simulator.OutcomeNotConnected,
		simulator.OutcomeTransportFailure,
	} {
		m.publishes.WithLabelValues(kind.String())
	}
	m.connectAttempts.WithLabelValues("success")
	m.connectAttempts.WithLabelValues("failure")
	m.setState(simulator.StateDisconnected)

	return m
}

// RecordOutcome counts one publish attempt.
func (m *Metrics) RecordOutcome(o simulator.Outcome) {
	m.publishes.WithLabelValues(o.Kind.String()).Inc()
}

// RecordTick counts a tick and observes its duration.
func (m *Metrics) RecordTick(s simulator.TickSummary) {
	m.ticks.Inc()
	m.tickDuration.Observe(s.Duration.Seconds())
}

// RecordConnectAttempt counts one connection attempt.
func (m *Metrics) RecordConnectAttempt(_ int, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.connectAttempts.WithLabelValues(result).Inc()
}

// ObserveState tracks connection state changes. Pass it to
// simulator.WithStateObserver.
func (m *Metrics) ObserveState(_, to simulator.ConnectionState) {
	m.setState(to)
}

func (m *Metrics) setState(current simulator.ConnectionState) {
	for _, s := range connectionStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.connectionState.WithLabelValues(s.String()).Set(v)
	}
}
