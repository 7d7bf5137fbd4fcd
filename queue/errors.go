package queue

import "errors"

// Sentinel errors for queue operations.
var (
	// ErrClosed indicates the queue has been closed: pushes are
	// rejected, and pops report it once the remaining items drain.
	ErrClosed = errors.New("queue closed")

	// ErrInvalidCapacity indicates a queue capacity of zero or less.
	ErrInvalidCapacity = errors.New("queue capacity must be positive")
)
