package simulator

import (
	"context"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Controller wires the connection manager, generator and loop together for
// one run and guarantees a clean shutdown.
type Controller struct {
	cfg       RunConfig
	conn      *ConnectionManager
	logger    Logger
	recorders MultiRecorder
	stats     *Stats
	src       rand.Source

	disconnectOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for the controller and everything it creates.
func WithLogger(logger Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder adds a recorder that receives outcomes, tick summaries and
// connect attempts.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
}

// WithRandSource sets the generator's random source. Without it the source
// is seeded from RunConfig.Seed.
func WithRandSource(src rand.Source) Option {
	return func(c *Controller) {
		c.src = src
	}
}

// WithStateObserver registers fn for connection state changes.
func WithStateObserver(fn func(from, to ConnectionState)) Option {
	return func(c *Controller) {
		c.conn.OnStateChange(fn)
	}
}

// NewController creates a controller for one run over transport.
func NewController(cfg RunConfig, transport Transport, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg,
		logger: noopLogger{},
		stats:  &Stats{},
	}
	c.conn = NewConnectionManager(transport, nil)
	for _, opt := range opts {
		opt(c)
	}
	c.conn.logger = c.logger
	c.recorders = append(MultiRecorder{c.stats}, c.recorders...)
	if c.src == nil {
		c.src = SeededSource(cfg.Seed)
	}
	return c
}

// Connection returns the controller's connection manager.
func (c *Controller) Connection() *ConnectionManager {
	return c.conn
}

// Stats returns a snapshot of the run's counters.
func (c *Controller) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Run executes the simulation until ctx is cancelled.
//
// Sequence: validate → connect with retry → publish loop alongside the
// reconnect supervisor → on cancellation the current tick completes →
// disconnect. Disconnect is attempted exactly once on every exit path.
//
// Returns nil after a cancellation, including one that arrives before the
// first successful connect. Invalid configuration is returned before any
// connect attempt.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	devices := c.cfg.DeviceIDs()
	c.logger.Info("simulator starting",
		"broker", c.cfg.BrokerAddress(),
		"profile", c.cfg.Profile.Name,
		"devices", len(devices),
		"interval", c.cfg.Interval.String(),
		"retry_delay", c.cfg.RetryDelay.String(),
	)

	defer c.disconnect()

	if _, err := ConnectWithRetry(ctx, c.conn, c.retryPolicy()); err != nil {
		c.logger.Info("cancelled before connecting")
		return nil
	}

	gen := NewGenerator(c.cfg.Profile, c.src)
	loop := NewLoop(c.conn, gen, LoopConfig{
		Devices:       devices,
		TopicTemplate: c.cfg.Template(),
		Interval:      c.cfg.Interval,
	}, WithLoopLogger(c.logger), WithLoopRecorder(c.recorders))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		c.supervise(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Error("publish loop failed", "error", err)
		return err
	}
	return nil
}

// supervise reconnects after asynchronous connection loss until ctx is done.
// Publishes fail fast as not connected in the meantime.
func (c *Controller) supervise(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.conn.Lost():
			c.logger.Warn("reconnecting after connection loss", "error", err)
			if _, err := ConnectWithRetry(ctx, c.conn, c.retryPolicy()); err != nil {
				return
			}
		}
	}
}

func (c *Controller) retryPolicy() RetryPolicy {
	return RetryPolicy{
		Delay:     c.cfg.RetryDelay,
		Target:    c.cfg.BrokerAddress(),
		Logger:    c.logger,
		OnAttempt: c.recorders.RecordConnectAttempt,
	}
}

func (c *Controller) disconnect() {
	c.disconnectOnce.Do(func() {
		c.logger.Info("disconnecting from broker")
		c.conn.Disconnect()
		s := c.stats.Snapshot()
		c.logger.Info("simulator stopped",
			"ticks", s.Ticks,
			"succeeded", s.Succeeded,
			"failed", s.Failed,
			"not_connected", s.NotConnected,
			"connect_attempts", s.ConnectAttempts,
		)
	})
}
