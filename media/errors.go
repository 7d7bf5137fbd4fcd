package media

import "errors"

// Sentinel errors for media ownership violations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrAlreadyReleased indicates a frame's buffer was released twice.
	ErrAlreadyReleased = errors.New("frame buffer already released")

	// ErrInvalidTimeBase indicates a time base with a non-positive denominator.
	ErrInvalidTimeBase = errors.New("invalid time base")
)
