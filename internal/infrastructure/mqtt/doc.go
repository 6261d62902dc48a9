// Package mqtt provides the MQTT transport for devicesim.
//
// This package manages:
//   - Single-attempt connections to the broker (no built-in auto-reconnect)
//   - Telemetry publishing bounded by a finite timeout
//   - Connection-loss notification for the simulator's reconnect supervisor
//   - Last Will and Testament (LWT) plus retained online/offline status
//   - Topic subscriptions for the watch command
//
// # Architecture
//
// Client implements simulator.Transport. Reconnection policy (fixed-delay
// retry, reconnect after loss) lives in the simulator, so paho's own
// auto-reconnect and connect-retry are disabled here.
//
//	simulator.ConnectionManager → mqtt.Client → paho → broker
//
// # Status Topic
//
// With broker.status enabled the client publishes a retained
// {"status":"online"} message on devicesim/{client_id}/status after every
// connect and {"status":"offline","reason":"graceful_shutdown"} on
// Disconnect. The broker publishes the LWT with reason
// "unexpected_disconnect" if the process dies.
//
// # Usage
//
//	client := mqtt.New(cfg.Broker)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	ack, err := client.Publish(ctx, "sim/device/1/telemetry", payload)
package mqtt
