package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// AckSuccess is the acknowledgement code returned for a completed publish.
// MQTT 3.1.1 carries no reason code in PUBACK, so completion is the ack.
const AckSuccess = 0

// Publish sends a telemetry message with the configured QoS, not retained.
//
// The call is bounded by the configured publish timeout and by ctx.
//
// Returns:
//   - int: AckSuccess when the publish completed
//   - error: ErrNotConnected, ErrInvalidTopic, or a wrapped ErrPublishFailed
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) (int, error) {
	if err := c.publish(ctx, topic, payload, byte(c.cfg.QoS), false); err != nil {
		return 0, err
	}
	return AckSuccess, nil
}

// PublishRetained publishes a retained message with the configured QoS.
//
// Use for state updates where new subscribers should receive the current state.
func (c *Client) PublishRetained(ctx context.Context, topic string, payload []byte) error {
	return c.publish(ctx, topic, payload, byte(c.cfg.QoS), true)
}

// publish validates inputs and waits for the publish token.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
func (c *Client) publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho().Publish(topic, qos, retained, payload)
	if err := waitToken(ctx, token, publishTimeout(c.cfg)); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
