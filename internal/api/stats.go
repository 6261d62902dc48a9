package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	Profile       string         `json:"profile"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Connection    string         `json:"connection"`
	Run           RunStats       `json:"run"`
	Runtime       RuntimeMetrics `json:"runtime"`
}

// RunStats mirrors simulator.StatsSnapshot.
type RunStats struct {
	Ticks           uint64 `json:"ticks"`
	Published       uint64 `json:"published"`
	Succeeded       uint64 `json:"succeeded"`
	Failed          uint64 `json:"failed"`
	NotConnected    uint64 `json:"not_connected"`
	ConnectAttempts uint64 `json:"connect_attempts"`
	ConnectFailures uint64 `json:"connect_failures"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		Profile:       s.profile,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Connection:    s.connection.State().String(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.stats != nil {
		snap := s.stats.Stats()
		resp.Run = RunStats{
			Ticks:           snap.Ticks,
			Published:       snap.Published(),
			Succeeded:       snap.Succeeded,
			Failed:          snap.Failed,
			NotConnected:    snap.NotConnected,
			ConnectAttempts: snap.ConnectAttempts,
			ConnectFailures: snap.ConnectFailures,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
