package buffer

import "errors"

// Sentinel errors for pool operations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrExhausted indicates every slot in the pool is checked out.
	// This is a recoverable condition: the caller may retry, block via
	// AcquireWait, or drop the unit of work.
	ErrExhausted = errors.New("buffer pool exhausted")

	// ErrForeignSlot indicates a release of a slot the pool never owned.
	ErrForeignSlot = errors.New("slot does not belong to this pool")

	// ErrDoubleRelease indicates a release of a slot that is already
	// in the available set.
	ErrDoubleRelease = errors.New("slot already released")

	// ErrInvalidCapacity indicates a pool capacity of zero or less.
	ErrInvalidCapacity = errors.New("pool capacity must be positive")

	// ErrNilAllocator indicates a nil slot allocator function.
	ErrNilAllocator = errors.New("slot allocator cannot be nil")
)
