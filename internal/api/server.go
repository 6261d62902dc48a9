package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests during shutdown.
	gracefulShutdownTimeout = 5 * time.Second

	readTimeout = 5 * time.Second

	// sinkCheckTimeout bounds each sink health check made by /healthz.
	sinkCheckTimeout = 2 * time.Second
)

// ConnectionSource reports the simulator's broker connection state.
// *simulator.ConnectionManager satisfies it.
type ConnectionSource interface {
	State() simulator.ConnectionState
}

// StatsSource reports the run's counters. *simulator.Controller satisfies it.
type StatsSource interface {
	Stats() simulator.StatsSnapshot
}

// HealthChecker is an optional export sink whose health /healthz reports.
// *influxdb.Client satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config     config.MetricsConfig
	Logger     *logging.Logger
	Gatherer   prometheus.Gatherer
	Connection ConnectionSource
	Stats      StatsSource

	// Sinks are keyed by the name shown in the health response.
	Sinks map[string]HealthChecker

	Profile string
	Version string
}

// Server is the status HTTP server.
type Server struct {
	cfg        config.MetricsConfig
	logger     *logging.Logger
	gatherer   prometheus.Gatherer
	connection ConnectionSource
	stats      StatsSource
	sinks      map[string]HealthChecker
	profile    string
	version    string
	startTime  time.Time

	mu     sync.Mutex
	server *http.Server
	addr   string
}

// New creates a status server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Connection == nil {
		return nil, fmt.Errorf("connection source is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		gatherer:   deps.Gatherer,
		connection: deps.Connection,
		stats:      deps.Stats,
		sinks:      deps.Sinks,
		profile:    deps.Profile,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// Port 0 picks a free port; Addr reports the bound address.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("status server listening", "address", s.addr)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the server, waiting briefly for in-flight
// requests. Safe to call before Start.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
