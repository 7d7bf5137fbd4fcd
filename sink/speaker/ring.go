package speaker

import "sync"

// ring is a fixed-size byte ring feeding the audio device callback.
// Each Speaker owns its own instance, so multiple pipelines stay
// independent; there is deliberately no package-level shared ring.
//
// Write never blocks: on overflow the oldest bytes are overwritten and
// counted, because a playback pipeline already has backpressure
// upstream and stalling the tick loop here would stutter video too.
// Read zero-fills on underrun so the device callback is never starved.
type ring struct {
	mu   sync.Mutex
	buf  []byte
	r, w int
	size int

	overruns  int64
	underruns int64
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]byte, capacity)}
}

// Write copies p into the ring, overwriting the oldest data if needed.
func (rb *ring) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, b := range p {
		rb.buf[rb.w] = b
		rb.w = (rb.w + 1) % len(rb.buf)
		if rb.size == len(rb.buf) {
			rb.r = (rb.r + 1) % len(rb.buf)
			rb.overruns++
		} else {
			rb.size++
		}
	}
	return len(p), nil
}

// Read fills p from the ring, zero-filling any shortfall. It never
// returns an error and never returns short, which keeps the device
// pull loop running through underruns.
func (rb *ring) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := 0
	for n < len(p) && rb.size > 0 {
		p[n] = rb.buf[rb.r]
		rb.r = (rb.r + 1) % len(rb.buf)
		rb.size--
		n++
	}
	if n < len(p) {
		rb.underruns++
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
	}
	return len(p), nil
}

// Buffered returns the number of bytes waiting to be read.
func (rb *ring) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Stats returns the overrun and underrun counts.
func (rb *ring) Stats() (overruns, underruns int64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.overruns, rb.underruns
}
