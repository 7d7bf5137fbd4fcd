package buffer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool is a fixed-capacity pool of preallocated storage slots.
//
// The free set is a buffered channel, which gives Acquire/AcquireWait
// their non-blocking and blocking variants for free and keeps the
// never-more-than-capacity invariant structural rather than counted.
// Ownership accounting (which slots are currently checked out) is kept
// separately under a mutex so misuse is detected at the release site.
type Pool[T any] struct {
	free     chan *T
	reset    func(*T)
	capacity int

	mu          sync.Mutex
	owned       map[*T]struct{}
	outstanding map[*T]struct{}
}

// NewPool creates a pool of capacity slots, allocating each one up
// front with alloc. reset, if non-nil, is applied to a slot on every
// release so reused slots start clean.
func NewPool[T any](capacity int, alloc func() *T, reset func(*T)) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if alloc == nil {
		return nil, ErrNilAllocator
	}

	p := &Pool[T]{
		free:        make(chan *T, capacity),
		reset:       reset,
		capacity:    capacity,
		owned:       make(map[*T]struct{}, capacity),
		outstanding: make(map[*T]struct{}, capacity),
	}
	for i := 0; i < capacity; i++ {
		slot := alloc()
		p.owned[slot] = struct{}{}
		p.free <- slot
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPool",
		"capacity": capacity,
	}).Debug("Buffer pool preallocated")

	return p, nil
}

// Acquire checks out a slot without blocking. It returns ErrExhausted
// when no slot is available; the caller decides whether to retry, wait,
// or drop.
func (p *Pool[T]) Acquire() (*T, error) {
	select {
	case slot := <-p.free:
		p.markOutstanding(slot)
		return slot, nil
	default:
		return nil, ErrExhausted
	}
}

// AcquireWait checks out a slot, blocking until one is released or ctx
// is cancelled. This is the backpressure-friendly variant producers
// should prefer over treating ErrExhausted as fatal.
func (p *Pool[T]) AcquireWait(ctx context.Context) (*T, error) {
	select {
	case slot := <-p.free:
		p.markOutstanding(slot)
		return slot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release resets a slot and returns it to the available set. The slot
// must have been acquired from this pool and not yet released.
func (p *Pool[T]) Release(slot *T) error {
	if slot == nil {
		return ErrForeignSlot
	}

	p.mu.Lock()
	if _, ok := p.owned[slot]; !ok {
		p.mu.Unlock()
		return ErrForeignSlot
	}
	if _, ok := p.outstanding[slot]; !ok {
		p.mu.Unlock()
		return ErrDoubleRelease
	}
	delete(p.outstanding, slot)
	p.mu.Unlock()

	if p.reset != nil {
		p.reset(slot)
	}
	p.free <- slot
	return nil
}

// Available returns the number of slots currently in the free set.
func (p *Pool[T]) Available() int {
	return len(p.free)
}

// Outstanding returns the number of slots currently checked out.
func (p *Pool[T]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// Capacity returns the fixed slot count of the pool.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

func (p *Pool[T]) markOutstanding(slot *T) {
	p.mu.Lock()
	p.outstanding[slot] = struct{}{}
	p.mu.Unlock()
}
