// Package queue provides a bounded, closeable FIFO queue connecting a
// decode producer to a presentation consumer.
//
// Push blocks while the queue is full, which is the pipeline's flow
// control: a slow consumer throttles the producer instead of letting
// memory grow without bound. Pop blocks while the queue is empty. Peek
// never blocks, letting a clock-gated consumer inspect the head frame
// without committing to consume it.
//
// Close is the shutdown escape hatch: it wakes every blocked waiter,
// fails all subsequent pushes with ErrClosed, and lets Pop drain the
// items already enqueued before it too reports ErrClosed. Without it a
// producer blocked on a full queue could never observe cancellation.
package queue
