package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
	})

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	return r
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status     string            `json:"status"`
	Connection string            `json:"connection"`
	Sinks      map[string]string `json:"sinks,omitempty"`
	Version    string            `json:"version"`
}

// handleHealth reports 200 only while the broker connection is up. A failing
// export sink marks the simulator degraded without failing the check, since
// telemetry still reaches the broker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.connection.State()

	resp := HealthResponse{
		Status:     "ok",
		Connection: state.String(),
		Version:    s.version,
	}

	if len(s.sinks) > 0 {
		resp.Sinks = make(map[string]string, len(s.sinks))
		for name, sink := range s.sinks {
			ctx, cancel := context.WithTimeout(r.Context(), sinkCheckTimeout)
			err := sink.HealthCheck(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("sink health check failed", "sink", name, "error", err)
				resp.Sinks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Sinks[name] = "ok"
		}
	}

	status := http.StatusOK
	if state != simulator.StateConnected {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
