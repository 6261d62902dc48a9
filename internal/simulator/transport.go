package simulator

import "context"

// Transport is the publish/subscribe client the simulator drives.
//
// Implementations must bound Connect and Publish with a finite timeout and
// honour ctx, so that a stalled broker cannot block shutdown.
type Transport interface {
	// Connect performs a single connection attempt.
	Connect(ctx context.Context) error

	// Publish sends payload to topic and returns the broker's ack code.
	Publish(ctx context.Context, topic string, payload []byte) (int, error)

	// Disconnect closes the connection.
	Disconnect() error

	// SetConnectionLostHandler registers fn to be called, on any goroutine,
	// when an established connection drops unexpectedly.
	SetConnectionLostHandler(fn func(err error))
}

// Logger defines the logging interface for simulator components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
