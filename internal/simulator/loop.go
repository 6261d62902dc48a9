package simulator

import (
	"context"
	"fmt"
	"time"
)

// Publisher submits a payload to a topic. ConnectionManager implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (int, error)
}

// LoopConfig holds the publish loop settings.
type LoopConfig struct {
	// Devices are published for in this order on every tick.
	Devices []DeviceID

	TopicTemplate string

	// Interval between tick starts.
	Interval time.Duration
}

// Loop drives the publish cadence.
type Loop struct {
	pub      Publisher
	gen      *Generator
	cfg      LoopConfig
	logger   Logger
	recorder Recorder

	tick uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the loop's logger.
func WithLoopLogger(logger Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLoopRecorder sets the recorder that receives every outcome.
func WithLoopRecorder(r Recorder) LoopOption {
	return func(l *Loop) {
		if r != nil {
			l.recorder = r
		}
	}
}

// NewLoop creates a publish loop.
func NewLoop(pub Publisher, gen *Generator, cfg LoopConfig, opts ...LoopOption) *Loop {
	l := &Loop{
		pub:      pub,
		gen:      gen,
		cfg:      cfg,
		logger:   noopLogger{},
		recorder: MultiRecorder(nil),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ticks immediately and then every Interval until ctx is cancelled.
//
// Cancellation is checked before each tick and ends the wait between ticks
// at once; a tick that has started always completes. Run returns nil on
// cancellation and a non-nil error only for a payload that cannot be encoded.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := l.Tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick publishes one payload per device, in device order, and returns the
// summary. Publishes run detached from ctx cancellation so that the tick is
// never cut short; each is bounded by the transport's own timeout.
func (l *Loop) Tick(ctx context.Context) (TickSummary, error) {
	l.tick++
	summary := TickSummary{
		Tick:    l.tick,
		Devices: len(l.cfg.Devices),
		Started: time.Now(),
	}
	pubCtx := context.WithoutCancel(ctx)

	for _, id := range l.cfg.Devices {
		payload := l.gen.Generate(id)
		data, err := payload.Marshal()
		if err != nil {
			return summary, fmt.Errorf("device %s: %w", id, err)
		}

		topic := Topic(l.cfg.TopicTemplate, id)
		ack, err := l.pub.Publish(pubCtx, topic, data)

		o := Outcome{Device: id, Topic: topic, Kind: classify(err), Ack: ack, Err: err}
		summary.add(o)
		l.recorder.RecordOutcome(o)
		l.logOutcome(o, data)
	}

	summary.Duration = time.Since(summary.Started)
	l.recorder.RecordTick(summary)
	l.logger.Debug("tick complete",
		"tick", summary.Tick,
		"devices", summary.Devices,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"not_connected", summary.NotConnected,
		"duration", summary.Duration,
	)

	return summary, nil
}

func (l *Loop) logOutcome(o Outcome, data []byte) {
	switch o.Kind {
	case OutcomeSuccess:
		l.logger.Info("published", "topic", o.Topic, "payload", string(data), "rc", o.Ack)
	case OutcomeNotConnected:
		l.logger.Warn("publish skipped: not connected", "topic", o.Topic)
	default:
		l.logger.Warn("publish failed", "topic", o.Topic, "rc", o.Ack, "error", o.Err)
	}
}
