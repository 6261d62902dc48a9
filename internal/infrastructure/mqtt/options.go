package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout applies when the config leaves connect_timeout unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout applies when the config leaves publish_timeout unset.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// clientIDPrefix prefixes generated client IDs.
	clientIDPrefix = "devicesim-"
)

// buildClientOptions creates paho MQTT options from the broker config.
//
// This configures:
//   - Broker URL (tcp://host:port)
//   - Client ID for identification
//   - Clean session mode
//   - Keepalive and connect timeout
//
// Paho's own reconnect machinery is switched off. Each Connect is a single
// attempt; retry and reconnect policy belong to the caller.
func buildClientOptions(cfg config.BrokerConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(clientID)

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(connectTimeout(cfg))

	// Keepalive - client sends PINGs so dead connections are detected
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.GetKeepAlive())
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The LWT message is published by the broker if the simulator disconnects
// unexpectedly (crash, network failure, etc.).
//
// Topic: devicesim/{client_id}/status
// QoS: 1
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	willTopic := Topics{}.Status(clientID)
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)

	opts.SetWill(willTopic, willPayload, 1, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

func connectTimeout(cfg config.BrokerConfig) time.Duration {
	if d := cfg.GetConnectTimeout(); d > 0 {
		return d
	}
	return defaultConnectTimeout
}

func publishTimeout(cfg config.BrokerConfig) time.Duration {
	if d := cfg.GetPublishTimeout(); d > 0 {
		return d
	}
	return defaultPublishTimeout
}
