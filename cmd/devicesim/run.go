package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-devicesim/internal/api"
	"github.com/nerrad567/gray-logic-devicesim/internal/history"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-devicesim/internal/metrics"
	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

// runSimulator wires the optional sinks around a Controller and runs it
// until ctx is cancelled.
//
// Startup order: logger → run config → InfluxDB → run history → metrics and
// status server → controller. Deferred closes run in reverse order.
//
// Returns:
//   - error: nil on clean shutdown, or the first fatal failure
func runSimulator(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)

	rc, err := simulator.RunConfigFrom(cfg)
	if err != nil {
		return err
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	transport := mqtt.New(cfg.Broker)
	transport.SetLogger(log)

	opts := []simulator.Option{simulator.WithLogger(log)}
	sinks := make(map[string]api.HealthChecker)

	// InfluxDB export (optional)
	influx, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Warn("influxdb write failed", "error", err)
		})
		opts = append(opts, simulator.WithRecorder(
			metrics.NewInfluxRecorder(influx, rc.Profile.Name, rc.BrokerAddress()),
		))
		sinks["influxdb"] = influx
		log.Info("InfluxDB export enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Prometheus collectors (optional)
	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)
		opts = append(opts, simulator.WithRecorder(m), simulator.WithStateObserver(m.ObserveState))
	}

	controller := simulator.NewController(rc, transport, opts...)

	// Status server (optional)
	if cfg.Metrics.Enabled {
		server, err := api.New(api.Deps{
			Config:     cfg.Metrics,
			Logger:     log,
			Gatherer:   reg,
			Connection: controller.Connection(),
			Stats:      controller,
			Sinks:      sinks,
			Profile:    rc.Profile.Name,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	// Run history (optional)
	recorder, err := startHistory(ctx, cfg, rc, log)
	if err != nil {
		return err
	}
	defer recorder.close()

	runErr := controller.Run(ctx)
	recorder.finish(controller.Stats(), runErr)
	return runErr
}

// runHistory records one run in the history database. The zero value
// records nothing.
type runHistory struct {
	db   *database.DB
	repo history.Repository
	run  *history.Run
	log  *logging.Logger
}

func startHistory(ctx context.Context, cfg *config.Config, rc simulator.RunConfig, log *logging.Logger) (*runHistory, error) {
	db, err := openHistory(ctx, cfg.Database)
	if errors.Is(err, database.ErrDisabled) {
		return &runHistory{}, nil
	}
	if err != nil {
		return nil, err
	}

	h := &runHistory{
		db:   db,
		repo: history.NewSQLiteRepository(db.DB),
		log:  log,
		run: &history.Run{
			Profile:  rc.Profile.Name,
			Broker:   rc.BrokerAddress(),
			Devices:  len(rc.DeviceIDs()),
			Interval: rc.Interval,
		},
	}
	if err := h.repo.Start(ctx, h.run); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("recording run start: %w", err)
	}
	log.Info("recording run history", "run_id", h.run.ID, "path", db.Path())
	return h, nil
}

// finish stores the final counters. It runs after cancellation, so it uses
// a context that is not cancelled with the run.
func (h *runHistory) finish(stats simulator.StatsSnapshot, runErr error) {
	if h.repo == nil {
		return
	}
	status := history.StatusCompleted
	if runErr != nil {
		status = history.StatusFailed
	}
	if err := h.repo.Finish(context.Background(), h.run.ID, status, stats, runErr); err != nil {
		h.log.Error("error recording run result", "run_id", h.run.ID, "error", err)
	}
}

func (h *runHistory) close() {
	if h.db == nil {
		return
	}
	if err := h.db.Close(); err != nil {
		h.log.Error("error closing database", "error", err)
	}
}

// openHistory opens and migrates the history database.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		if errors.Is(err, database.ErrDisabled) {
			return nil, err
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
