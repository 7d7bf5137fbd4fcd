// Package buffer provides a fixed-capacity pool of reusable storage
// slots for transient decode buffers.
//
// A Pool preallocates all of its slots at construction and never grows.
// Acquire hands out a slot without blocking, reporting ErrExhausted when
// every slot is checked out; AcquireWait blocks until a slot is released
// or the caller's context is cancelled, giving producers the same
// backpressure model as a bounded queue. Release resets a slot and
// returns it to the available set, with full accounting: releasing a
// slot the pool does not own, or releasing the same slot twice, is
// rejected rather than silently corrupting the free list.
package buffer
