package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the simulator's broker transport.
//
// Each Connect builds a fresh paho client and makes a single attempt.
// Loss of an established connection is reported through the handler set
// with SetConnectionLostHandler; the client never reconnects on its own.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are restored when Connect succeeds again.
type Client struct {
	cfg      config.BrokerConfig
	clientID string

	// client is replaced on every Connect.
	client   pahomqtt.Client
	clientMu sync.RWMutex

	// subscriptions tracks active subscriptions for re-subscription on connect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// onLost is invoked when an established connection drops.
	onLost     func(err error)
	callbackMu sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on connect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
type MessageHandler func(topic string, payload []byte) error

// New creates a disconnected client. An empty client ID in cfg is replaced
// by a generated "devicesim-<uuid>".
func New(cfg config.BrokerConfig) *Client {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = clientIDPrefix + uuid.NewString()
	}
	return &Client{
		cfg:           cfg,
		clientID:      clientID,
		subscriptions: make(map[string]subscription),
	}
}

// ClientID returns the MQTT client identifier in use.
func (c *Client) ClientID() string {
	return c.clientID
}

// Connect makes a single connection attempt to the broker.
//
// It performs the following setup:
//  1. Builds connection options from config
//  2. Configures Last Will and Testament (LWT) when status is enabled
//  3. Attempts the connection, bounded by the connect timeout and ctx
//  4. Restores tracked subscriptions
//  5. Publishes retained online status to devicesim/{client_id}/status
//
// Returns:
//   - error: wrapping ErrConnectionFailed if the attempt fails
func (c *Client) Connect(ctx context.Context) error {
	opts := buildClientOptions(c.cfg, c.clientID)
	if c.cfg.Status {
		configureLWT(opts, c.clientID)
	}

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if err := waitToken(ctx, token, connectTimeout(c.cfg)); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.clientMu.Lock()
	c.client = client
	c.clientMu.Unlock()

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions(client)

	if c.cfg.Status {
		if err := c.publish(ctx, Topics{}.Status(c.clientID), []byte(buildOnlinePayload(c.clientID)), 1, true); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("publishing online status failed", "error", err)
			}
		}
	}

	return nil
}

// handleConnectionLost is called by paho when the connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onLost
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after connect.
func (c *Client) restoreSubscriptions(client pahomqtt.Client) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Ignore errors; the subscriber sees missing messages, not a failed connect.
		client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Disconnect gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Disconnects with a short quiesce period for pending operations
//
// Disconnecting a client that is not connected is not an error.
//
// Returns:
//   - error: if the offline status could not be published; the
//     connection is closed regardless
func (c *Client) Disconnect() error {
	client := c.paho()
	if client == nil {
		return nil
	}

	var statusErr error
	if c.IsConnected() && c.cfg.Status {
		statusErr = c.publish(context.Background(), Topics{}.Status(c.clientID), []byte(buildOfflinePayload(c.clientID)), 1, true)
	}

	client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if statusErr != nil {
		return fmt.Errorf("publishing offline status: %w", statusErr)
	}
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	client := c.paho()

	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && client != nil && client.IsConnected()
}

// SetConnectionLostHandler sets the callback invoked when an established
// connection is lost. It runs on a paho goroutine.
func (c *Client) SetConnectionLostHandler(fn func(err error)) {
	c.callbackMu.Lock()
	c.onLost = fn
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) paho() pahomqtt.Client {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.client
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

// waitToken waits for token to complete, for ctx to end, or for timeout,
// whichever comes first.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: after %v", ErrTimeout, timeout)
	}
}
