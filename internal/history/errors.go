package history

import "errors"

var (
	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("history: run not found")

	// ErrInvalidStatus is returned when finishing a run with a status other
	// than completed or failed.
	ErrInvalidStatus = errors.New("history: invalid status")
)
