package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

func newWatchCmd(opts *options) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print readings published under the selected profile's topics",
		Long: `Subscribe to every device topic of the selected profile, plus the simulator
status topics, and print each message as it arrives:

  <device_id>  <topic>  <payload>

Logs go to stderr so stdout carries only messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			rc, err := simulator.RunConfigFrom(cfg)
			if err != nil {
				return err
			}

			log := logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr())

			// A watcher is a separate client: its own ID and no status topic.
			brokerCfg := cfg.Broker
			brokerCfg.ClientID = ""
			brokerCfg.Status = false
			client := mqtt.New(brokerCfg)
			client.SetLogger(log)

			w := &watcher{
				out:      cmd.OutOrStdout(),
				template: rc.Template(),
				limit:    count,
				log:      log,
				done:     make(chan struct{}),
			}
			return w.run(cmd.Context(), client, rc, cfg.Broker.QoS)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "exit after this many device messages (0 = until interrupted)")

	return cmd
}

// watcher prints messages received on device and status topics.
type watcher struct {
	out      io.Writer
	template string
	limit    int
	log      *logging.Logger

	mu       sync.Mutex
	received int
	stopped  bool
	done     chan struct{}
	doneOnce sync.Once
}

func (w *watcher) run(ctx context.Context, client *mqtt.Client, rc simulator.RunConfig, qos int) error {
	_, err := simulator.ConnectWithRetry(ctx, client, simulator.RetryPolicy{
		Delay:  rc.RetryDelay,
		Target: rc.BrokerAddress(),
		Logger: w.log,
	})
	if err != nil {
		return nil // cancelled before connecting
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			w.log.Warn("error disconnecting watcher", "error", err)
		}
		// Drop callbacks paho delivers after disconnect.
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
	}()

	topics := mqtt.Topics{}
	filter := topics.DeviceFilter(w.template)
	// #nosec G115 -- qos validated to 0-2 by config
	if err := client.Subscribe(ctx, filter, byte(qos), w.handleDevice); err != nil {
		return fmt.Errorf("subscribing to %s: %w", filter, err)
	}
	if err := client.Subscribe(ctx, topics.AllStatus(), 1, w.handleStatus); err != nil {
		return fmt.Errorf("subscribing to status topics: %w", err)
	}
	w.log.Info("watching", "filter", filter, "broker", rc.BrokerAddress())

	select {
	case <-ctx.Done():
	case <-w.done:
	}
	return nil
}

func (w *watcher) handleDevice(topic string, payload []byte) error {
	id, ok := mqtt.Topics{}.DeviceFromTopic(w.template, topic)
	if !ok {
		return nil
	}
	if _, err := simulator.ParsePayload(payload); err != nil {
		w.log.Warn("unparseable payload", "topic", topic, "error", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || (w.limit > 0 && w.received >= w.limit) {
		return nil
	}
	fmt.Fprintf(w.out, "%s\t%s\t%s\n", id, topic, payload)
	w.received++
	if w.limit > 0 && w.received >= w.limit {
		w.doneOnce.Do(func() { close(w.done) })
	}
	return nil
}

func (w *watcher) handleStatus(topic string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	fmt.Fprintf(w.out, "status\t%s\t%s\n", topic, payload)
	return nil
}
