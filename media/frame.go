package media

import "sync"

// PixelBuffer is a reusable storage slot for decoded video pixels.
// Instances are preallocated by a buffer pool; Data keeps its full
// capacity across reuse and is re-sliced by each decode.
type PixelBuffer struct {
	Data   []byte
	Width  int
	Height int
	Stride int
}

// Reset clears per-frame metadata so the slot can be reused.
// The backing array is retained.
func (b *PixelBuffer) Reset() {
	b.Data = b.Data[:0]
	b.Width = 0
	b.Height = 0
	b.Stride = 0
}

// SampleBuffer is a reusable storage slot for decoded audio samples,
// interleaved in the stream's native sample format.
type SampleBuffer struct {
	Data    []byte
	Samples int
}

// Reset clears per-frame metadata so the slot can be reused.
func (b *SampleBuffer) Reset() {
	b.Data = b.Data[:0]
	b.Samples = 0
}

// Frame is the sealed sum of decoded frame kinds. Concrete values are
// always *VideoFrame or *AudioFrame; consumers dispatch with a type
// switch rather than inheritance.
type Frame interface {
	// PTS returns the presentation time of the frame in seconds.
	PTS() float64
	// Release returns the frame's buffer to its owner. It must be called
	// exactly once after the frame has been consumed; a second call
	// returns ErrAlreadyReleased.
	Release() error

	isFrame()
}

// releaser implements the exactly-once buffer handoff shared by both
// frame kinds.
type releaser struct {
	mu       sync.Mutex
	released bool
	release  func()
}

func (r *releaser) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrAlreadyReleased
	}
	r.released = true
	if r.release != nil {
		r.release()
	}
	return nil
}

// Released reports whether Release has been called.
func (r *releaser) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// VideoFrame is one decoded picture, owning the pooled pixel buffer it
// was decoded into until Release is called.
type VideoFrame struct {
	releaser

	Width  int
	Height int
	Stride int

	buf *PixelBuffer
	pts float64
}

// NewVideoFrame wraps a filled pixel buffer as a presentable frame.
// release is invoked exactly once when the frame is released, typically
// returning buf to its pool; it may be nil for frames whose storage is
// not pooled.
func NewVideoFrame(buf *PixelBuffer, pts float64, release func()) *VideoFrame {
	return &VideoFrame{
		releaser: releaser{release: release},
		Width:    buf.Width,
		Height:   buf.Height,
		Stride:   buf.Stride,
		buf:      buf,
		pts:      pts,
	}
}

// PTS returns the presentation time in seconds.
func (f *VideoFrame) PTS() float64 { return f.pts }

// Pixels returns the frame's pixel data. The slice is only valid until
// Release is called.
func (f *VideoFrame) Pixels() []byte { return f.buf.Data }

// Buffer returns the underlying pooled buffer.
func (f *VideoFrame) Buffer() *PixelBuffer { return f.buf }

func (f *VideoFrame) isFrame() {}

// AudioFrame is one decoded block of interleaved samples, owning the
// pooled sample buffer it was decoded into until Release is called.
type AudioFrame struct {
	releaser

	Channels       int
	SampleRate     int
	Samples        int
	BytesPerSample int

	buf *SampleBuffer
	pts float64
}

// NewAudioFrame wraps a filled sample buffer as a playable frame.
// release follows the same contract as in NewVideoFrame.
func NewAudioFrame(buf *SampleBuffer, channels, sampleRate, bytesPerSample int, pts float64, release func()) *AudioFrame {
	return &AudioFrame{
		releaser:       releaser{release: release},
		Channels:       channels,
		SampleRate:     sampleRate,
		Samples:        buf.Samples,
		BytesPerSample: bytesPerSample,
		buf:            buf,
		pts:            pts,
	}
}

// PTS returns the presentation time in seconds.
func (f *AudioFrame) PTS() float64 { return f.pts }

// Data returns the frame's interleaved sample bytes. The slice is only
// valid until Release is called.
func (f *AudioFrame) Data() []byte { return f.buf.Data }

// Buffer returns the underlying pooled buffer.
func (f *AudioFrame) Buffer() *SampleBuffer { return f.buf }

// Duration returns the frame's play length in seconds.
func (f *AudioFrame) Duration() float64 {
	if f.SampleRate == 0 {
		return 0
	}
	return float64(f.Samples) / float64(f.SampleRate)
}

func (f *AudioFrame) isFrame() {}
