// Package simulator implements the device fleet simulator core.
//
// This package manages:
//   - Synthetic payload generation from data-driven profiles
//   - The broker connection lifecycle (connect, loss detection, disconnect)
//   - Fixed-delay connect retry that is interruptible by cancellation
//   - The timer-driven publish loop and per-publish outcome accounting
//   - Run orchestration with guaranteed disconnect on every exit path
//
// # Architecture
//
//	Controller → ConnectionManager.Connect (ConnectWithRetry)
//	           → Loop tick → Generator.Generate → ConnectionManager.Publish
//	           → Recorder(s) → wait for next tick or cancellation
//	           → ConnectionManager.Disconnect
//
// The package depends only on the narrow Transport interface; the MQTT
// implementation lives in internal/infrastructure/mqtt.
//
// # Concurrency
//
// ConnectionManager serialises state transitions with a dedicated mutex and
// guards the state itself with an RWMutex held shared for the duration of
// each publish, so Disconnect waits for in-flight publishes and a publish
// never observes a half-completed transition. Transport loss notifications
// arrive on foreign goroutines and go through the same locks.
//
// Every blocking wait (retry delay, tick interval) selects on the run
// context, so cancellation is observed immediately.
//
// # Usage
//
//	rc, err := simulator.RunConfigFrom(cfg)
//	if err != nil {
//	    return err
//	}
//	ctrl := simulator.NewController(rc, mqtt.New(cfg.Broker),
//	    simulator.WithLogger(logger),
//	)
//	return ctrl.Run(ctx)
package simulator
