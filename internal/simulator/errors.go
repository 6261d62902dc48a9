package simulator

import "errors"

// Domain-specific errors for simulator operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnect is returned when a single connect attempt fails.
	// It is recovered by the retry loop and never fatal.
	ErrConnect = errors.New("simulator: connect failed")

	// ErrNotConnected is returned by Publish when the connection is not
	// in the Connected state. Publishes are never buffered.
	ErrNotConnected = errors.New("simulator: not connected")

	// ErrTransport is returned by Publish when the transport send fails.
	ErrTransport = errors.New("simulator: transport error")

	// ErrInvalidConfig is returned when the run configuration is unusable.
	// It aborts the run before any connect attempt.
	ErrInvalidConfig = errors.New("simulator: invalid configuration")

	// ErrEncode is returned when a payload cannot be serialised.
	ErrEncode = errors.New("simulator: payload encoding failed")
)
