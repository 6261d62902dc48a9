// Package metrics turns simulator outcomes into exported telemetry.
//
// Two simulator.Recorder implementations live here:
//   - Metrics: Prometheus counters, a tick duration histogram and a
//     connection state gauge, served by the status server on /metrics
//   - InfluxRecorder: tick summaries and connect attempts written to
//     InfluxDB through a PointWriter (normally *influxdb.Client)
//
// Both are attached with simulator.WithRecorder; Metrics also needs
// simulator.WithStateObserver(m.ObserveState) for the connection gauge.
package metrics
