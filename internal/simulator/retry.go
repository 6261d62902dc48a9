package simulator

import (
	"context"
	"time"
)

// Connector performs a single connection attempt.
type Connector interface {
	Connect(ctx context.Context) error
}

// RetryPolicy configures ConnectWithRetry.
type RetryPolicy struct {
	// Delay is the fixed wait between attempts.
	Delay time.Duration

	// Target names the broker in log lines.
	Target string

	Logger Logger

	// OnAttempt is called after every attempt with its 1-based number and
	// result.
	OnAttempt func(attempt int, err error)
}

// ConnectWithRetry calls c.Connect until it succeeds or ctx is cancelled,
// waiting Delay between attempts. There is no attempt limit.
//
// Returns the number of attempts made and nil on success, or ctx.Err() if
// cancelled. The wait between attempts ends as soon as ctx is done.
func ConnectWithRetry(ctx context.Context, c Connector, p RetryPolicy) (int, error) {
	logger := p.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		logger.Info("connecting to broker", "broker", p.Target, "attempt", attempt)
		err := c.Connect(ctx)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if err == nil {
			logger.Info("connected to broker", "broker", p.Target, "attempts", attempt)
			return attempt, nil
		}

		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		logger.Warn("could not connect to broker",
			"broker", p.Target,
			"attempt", attempt,
			"retry_in", p.Delay.String(),
			"error", err,
		)

		if timer == nil {
			timer = time.NewTimer(p.Delay)
		} else {
			timer.Reset(p.Delay)
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}
