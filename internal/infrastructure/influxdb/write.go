package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the simulator.
const (
	MeasurementTick    = "simulator_tick"
	MeasurementConnect = "simulator_connect"
)

// TickPoint is one publish tick as stored in InfluxDB.
type TickPoint struct {
	Profile      string
	Broker       string
	Tick         uint64
	Devices      int
	Succeeded    int
	Failed       int
	NotConnected int
	Duration     time.Duration
	Time         time.Time
}

// WriteTickSummary writes the outcome counts of a single publish tick.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteTickSummary(influxdb.TickPoint{
//	    Profile: "fleet", Broker: "localhost:1883",
//	    Tick: 7, Devices: 10, Succeeded: 10,
//	    Duration: 3 * time.Millisecond, Time: started,
//	})
func (c *Client) WriteTickSummary(p TickPoint) {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.WritePointWithTime(
		MeasurementTick,
		map[string]string{
			"profile": p.Profile,
			"broker":  p.Broker,
		},
		map[string]interface{}{
			"tick":          int64(p.Tick), // #nosec G115 -- tick counts never approach MaxInt64
			"devices":       p.Devices,
			"succeeded":     p.Succeeded,
			"failed":        p.Failed,
			"not_connected": p.NotConnected,
			"duration_ms":   float64(p.Duration) / float64(time.Millisecond),
		},
		ts,
	)
}

// WriteConnectAttempt records a single broker connection attempt.
//
// Parameters:
//   - broker: Broker address (host:port)
//   - attempt: 1-based attempt number within the current connect cycle
//   - err: nil for a successful attempt
func (c *Client) WriteConnectAttempt(broker string, attempt int, err error) {
	fields := map[string]interface{}{
		"attempt": attempt,
		"success": err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	c.WritePoint(MeasurementConnect, map[string]string{"broker": broker}, fields)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., the start of a tick).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
