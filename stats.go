package playback

import "sync/atomic"

// Stats is a point-in-time snapshot of pipeline counters, suitable for
// a host's debug overlay.
type Stats struct {
	VideoDecoded   int64
	AudioDecoded   int64
	VideoDelivered int64
	AudioDelivered int64

	// VideoDropped counts due frames skipped by the freshest-only
	// delivery policy; DecodeFailures counts per-frame decode errors
	// that were dropped and recovered locally.
	VideoDropped   int64
	DecodeFailures int64

	VideoQueueDepth int
	AudioQueueDepth int
}

// counters holds the pipeline's hot-path counters as atomics so the
// decode goroutine and the tick loop never contend on a lock for
// bookkeeping.
type counters struct {
	videoDecoded   atomic.Int64
	audioDecoded   atomic.Int64
	videoDelivered atomic.Int64
	audioDelivered atomic.Int64
	videoDropped   atomic.Int64
	decodeFailures atomic.Int64
}

// Stats returns a snapshot of the pipeline's counters and live queue
// depths.
func (p *Pipeline) Stats() Stats {
	return Stats{
		VideoDecoded:    p.counters.videoDecoded.Load(),
		AudioDecoded:    p.counters.audioDecoded.Load(),
		VideoDelivered:  p.counters.videoDelivered.Load(),
		AudioDelivered:  p.counters.audioDelivered.Load(),
		VideoDropped:    p.counters.videoDropped.Load(),
		DecodeFailures:  p.counters.decodeFailures.Load(),
		VideoQueueDepth: p.videoQueue.Len(),
		AudioQueueDepth: p.audioQueue.Len(),
	}
}
