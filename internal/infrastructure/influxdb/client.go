package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client is the optional run telemetry sink. Tick summaries and connect
// attempts are queued on a non-blocking write API and sent in batches.
//
// Write failures surface twice: through the SetOnError callback as they
// happen, and through HealthCheck, which reports the most recent failure
// once so the status server can show a sink that stopped accepting points.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	org      string
	bucket   string

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
	lastErr   error

	closeOnce sync.Once
}

// Connect creates the client and pings the server. The ping is bounded by
// ctx and a default timeout.
//
// Returns ErrDisabled when cfg.Enabled is false, so callers can skip the
// sink without treating it as a failure.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		org:       cfg.Org,
		bucket:    cfg.Bucket,
		connected: true,
	}
	go c.drainErrors(c.writeAPI.Errors())

	return c, nil
}

// clientOptions applies batch defaults for unset or negative values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive by construction
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return errors.New("ping: server not ready")
	}
	return nil
}

// drainErrors runs until the write API is closed.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		wrapped := fmt.Errorf("%w: %w", ErrWriteFailed, err)

		c.mu.Lock()
		c.lastErr = wrapped
		callback := c.onError
		c.mu.Unlock()

		if callback != nil {
			callback(wrapped)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures. Errors
// passed to it wrap ErrWriteFailed.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// IsConnected reports whether Close has not been called yet.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck pings the server and reports the newest write failure since
// the previous check.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	lastErr := c.lastErr
	c.lastErr = nil
	c.mu.Unlock()
	if lastErr != nil {
		return lastErr
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(pingCtx, c.client); err != nil {
		return fmt.Errorf("influxdb %s/%s: %w", c.org, c.bucket, err)
	}
	return nil
}

// Flush sends every queued point and blocks until the batch is written.
// No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes queued points and releases the client. Calling Close more
// than once is a no-op.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.Flush()

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		c.client.Close()
	})
	return nil
}
