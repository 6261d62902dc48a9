package metrics

import (
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

// PointWriter is the subset of *influxdb.Client used for export.
type PointWriter interface {
	WriteTickSummary(p influxdb.TickPoint)
	WriteConnectAttempt(broker string, attempt int, err error)
}

// InfluxRecorder writes tick summaries and connect attempts to InfluxDB.
// Individual outcomes are not exported; the tick summary carries their counts.
type InfluxRecorder struct {
	w       PointWriter
	profile string
	broker  string
}

// NewInfluxRecorder creates a recorder tagging points with the run's profile
// and broker address.
func NewInfluxRecorder(w PointWriter, profile, broker string) *InfluxRecorder {
	return &InfluxRecorder{w: w, profile: profile, broker: broker}
}

// RecordOutcome is a no-op.
func (r *InfluxRecorder) RecordOutcome(simulator.Outcome) {}

// RecordTick writes one simulator_tick point.
func (r *InfluxRecorder) RecordTick(s simulator.TickSummary) {
	r.w.WriteTickSummary(influxdb.TickPoint{
		Profile:      r.profile,
		Broker:       r.broker,
		Tick:         s.Tick,
		Devices:      s.Devices,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		NotConnected: s.NotConnected,
		Duration:     s.Duration,
		Time:         s.Started,
	})
}

// RecordConnectAttempt writes one simulator_connect point.
func (r *InfluxRecorder) RecordConnectAttempt(attempt int, err error) {
	r.w.WriteConnectAttempt(r.broker, attempt, err)
}
