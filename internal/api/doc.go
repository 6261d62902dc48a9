// Package api implements devicesim's status HTTP server.
//
// This package provides:
//   - GET /healthz: 200 while the broker connection is up, 503 otherwise;
//     a failing export sink (InfluxDB) reports "degraded"
//   - GET /metrics: Prometheus exposition of the run's collectors
//   - GET /api/v1/stats: JSON snapshot of run counters and Go runtime stats
//   - Middleware stack (request ID, logging, recovery)
//
// The server is optional (metrics.enabled) and follows the same lifecycle
// as the infrastructure components:
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil { ... }
//	defer server.Close()
package api
