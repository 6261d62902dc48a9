// Package influxdb provides optional InfluxDB export of simulator run telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched point writing and health monitoring.
//
// # Purpose
//
// When influxdb.enabled is set, every publish tick is written as a
// simulator_tick point (profile and broker tags; device, outcome and duration
// fields) and every broker connection attempt as a simulator_connect point.
// This gives a long-running soak test a history that outlives the process.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // export not configured
//	} else if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTickSummary(influxdb.TickPoint{Profile: "fleet", Devices: 10, Succeeded: 10})
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered to the
// SetOnError callback. HealthCheck returns the newest batch error once,
// then falls back to pinging the server, which is how the status server's
// /healthz shows a sink that stopped accepting points.
package influxdb
