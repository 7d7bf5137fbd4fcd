package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slot is a representative pooled storage type for tests.
type slot struct {
	data []byte
}

func newTestPool(t *testing.T, capacity int) *Pool[slot] {
	t.Helper()
	p, err := NewPool(capacity,
		func() *slot { return &slot{data: make([]byte, 0, 64)} },
		func(s *slot) { s.data = s.data[:0] },
	)
	require.NoError(t, err)
	return p
}

// TestNewPoolValidation verifies constructor parameter checking.
func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool[slot](0, func() *slot { return &slot{} }, nil)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewPool[slot](-1, func() *slot { return &slot{} }, nil)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewPool[slot](4, nil, nil)
	assert.ErrorIs(t, err, ErrNilAllocator)
}

// TestAcquireReleaseCycle verifies that a full acquire/release cycle
// restores the pool to its initial accounting with no leak.
func TestAcquireReleaseCycle(t *testing.T) {
	const capacity = 4
	p := newTestPool(t, capacity)

	assert.Equal(t, capacity, p.Capacity())
	assert.Equal(t, capacity, p.Available())

	slots := make([]*slot, 0, capacity)
	for i := 0; i < capacity; i++ {
		s, err := p.Acquire()
		require.NoError(t, err)
		slots = append(slots, s)
	}
	assert.Equal(t, 0, p.Available())
	assert.Equal(t, capacity, p.Outstanding())

	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)

	for _, s := range slots {
		require.NoError(t, p.Release(s))
	}
	assert.Equal(t, capacity, p.Available())
	assert.Equal(t, 0, p.Outstanding())
}

// TestResetAppliedOnRelease verifies that reused slots come back clean.
func TestResetAppliedOnRelease(t *testing.T) {
	p := newTestPool(t, 1)

	s, err := p.Acquire()
	require.NoError(t, err)
	s.data = append(s.data, 1, 2, 3)
	require.NoError(t, p.Release(s))

	s, err = p.Acquire()
	require.NoError(t, err)
	assert.Len(t, s.data, 0)
}

// TestDoubleRelease verifies that a second release of the same slot is
// rejected instead of corrupting the free list.
func TestDoubleRelease(t *testing.T) {
	p := newTestPool(t, 2)

	s, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(s))

	err = p.Release(s)
	assert.ErrorIs(t, err, ErrDoubleRelease)
	assert.Equal(t, 2, p.Available())
}

// TestForeignSlotRelease verifies that a slot the pool never owned is
// rejected.
func TestForeignSlotRelease(t *testing.T) {
	p := newTestPool(t, 2)

	err := p.Release(&slot{})
	assert.ErrorIs(t, err, ErrForeignSlot)

	err = p.Release(nil)
	assert.ErrorIs(t, err, ErrForeignSlot)
}

// TestAcquireWaitBlocksUntilRelease verifies that the blocking variant
// wakes when a slot is returned.
func TestAcquireWaitBlocksUntilRelease(t *testing.T) {
	p := newTestPool(t, 1)

	held, err := p.Acquire()
	require.NoError(t, err)

	got := make(chan *slot, 1)
	go func() {
		s, werr := p.AcquireWait(context.Background())
		if werr == nil {
			got <- s
		}
	}()

	// Give the waiter time to block, then release.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Release(held))

	select {
	case s := <-got:
		assert.NotNil(t, s)
	case <-time.After(time.Second):
		t.Fatal("AcquireWait did not wake after release")
	}
}

// TestAcquireWaitCancellation verifies that context cancellation
// unblocks a waiting acquire.
func TestAcquireWaitCancellation(t *testing.T) {
	p := newTestPool(t, 1)

	_, err := p.Acquire()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, werr := p.AcquireWait(ctx)
		done <- werr
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("AcquireWait did not observe cancellation")
	}
}

// TestConcurrentAcquireRelease verifies the capacity invariant under
// concurrent checkout from many goroutines: live slots never exceed
// capacity, and all slots return after the churn.
func TestConcurrentAcquireRelease(t *testing.T) {
	const capacity = 8
	p := newTestPool(t, capacity)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s, err := p.AcquireWait(context.Background())
				if err != nil {
					t.Error(err)
					return
				}
				if out := p.Outstanding(); out > capacity {
					t.Errorf("outstanding %d exceeds capacity %d", out, capacity)
					return
				}
				if err := p.Release(s); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, p.Available())
	assert.Equal(t, 0, p.Outstanding())
}
