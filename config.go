package playback

import (
	"github.com/opd-ai/playback/clock"
	"github.com/opd-ai/playback/media"
)

// StreamInfo describes the tracks discovered by Demuxer.Open. The
// pipeline sizes its pools and constructs frames from these values.
type StreamInfo struct {
	// Video track description. Width, Height, and Stride describe the
	// target pixel format after conversion; Stride of zero defaults to
	// Width * 4 (packed 32-bit pixels).
	HasVideo  bool
	Width     int
	Height    int
	Stride    int
	FrameRate float64

	// Audio track description, in the target sample format after
	// conversion.
	HasAudio       bool
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// Demuxer extracts timestamped elementary-stream packets from a
// container. It is an external collaborator: the pipeline never parses
// container formats itself.
type Demuxer interface {
	// Open discovers the streams and returns their description.
	// It must be called before the first ReadPacket.
	Open() (StreamInfo, error)

	// ReadPacket returns the next packet in container order. At end of
	// stream it returns io.EOF, which the pipeline treats as clean
	// termination rather than an error.
	ReadPacket() (media.Packet, error)

	// Close releases demuxer resources.
	Close() error
}

// VideoDecoder decodes one video packet into a borrowed pixel buffer.
// The decoder must fill dst.Data (re-slicing within its capacity) and
// set dst.Width, dst.Height, and dst.Stride. A (false, nil) return
// means the packet produced no frame yet and more input is needed.
type VideoDecoder interface {
	Decode(pkt media.Packet, dst *media.PixelBuffer) (bool, error)
	Close() error
}

// AudioDecoder decodes one audio packet into a borrowed sample buffer.
// The decoder must fill dst.Data and set dst.Samples. A (false, nil)
// return means the packet produced no frame yet.
type AudioDecoder interface {
	Decode(pkt media.Packet, dst *media.SampleBuffer) (bool, error)
	Close() error
}

// VideoConverter rewrites a decoded pixel buffer into the target
// presentation format in place. Optional.
type VideoConverter interface {
	Convert(buf *media.PixelBuffer) error
}

// AudioConverter rewrites a decoded sample buffer into the target
// output format in place. Optional.
type AudioConverter interface {
	Convert(buf *media.SampleBuffer) error
}

// VideoSink presents finished video frames. The frame is only valid
// for the duration of the call; the pipeline releases its buffer
// immediately after Present returns.
type VideoSink interface {
	Present(frame *media.VideoFrame) error
}

// AudioSink plays finished audio frames, under the same frame validity
// contract as VideoSink.
type AudioSink interface {
	Write(frame *media.AudioFrame) error
}

// DeliveryPolicy selects how Tick handles a backlog of due video
// frames.
type DeliveryPolicy uint8

const (
	// DeliverFreshest presents only the most recent due frame per tick
	// and drops earlier-but-still-due frames, bounding presentation
	// latency when the consumer falls behind. This is the default.
	DeliverFreshest DeliveryPolicy = iota

	// DeliverAll presents every due frame in order. Under backlog this
	// can starve the host loop; it exists for hosts that need every
	// frame, such as offline renderers.
	DeliverAll
)

// String returns a human-readable policy name for logging.
func (p DeliveryPolicy) String() string {
	switch p {
	case DeliverFreshest:
		return "freshest"
	case DeliverAll:
		return "all"
	default:
		return "unknown"
	}
}

// Default capacities. Video queues are kept short so the freshest-only
// policy has little to skip; audio queues run deeper because audio
// frames are small and underruns are audible.
const (
	DefaultVideoQueueCapacity = 16
	DefaultAudioQueueCapacity = 64

	// poolHeadroom is the number of slots a pool holds beyond its
	// queue's capacity, covering the frame in flight inside the decode
	// loop and frames popped but not yet released by a tick.
	poolHeadroom = 4

	// DefaultMaxConsecutiveDecodeFailures is the escalation threshold:
	// per-frame decode errors are dropped and logged, but this many in
	// a row terminates the decode loop with ErrDecodeFailed.
	DefaultMaxConsecutiveDecodeFailures = 30
)

// Config carries the collaborators and tuning knobs for a Pipeline.
// Demuxer is required; a decoder is required for every track the
// demuxer reports; sinks and converters are optional (frames without a
// sink are consumed and released unseen).
type Config struct {
	Demuxer Demuxer

	VideoDecoder VideoDecoder
	AudioDecoder AudioDecoder

	VideoConverter VideoConverter
	AudioConverter AudioConverter

	VideoSink VideoSink
	AudioSink AudioSink

	// Queue capacities; zero selects the defaults above.
	VideoQueueCapacity int
	AudioQueueCapacity int

	// Policy for due video frames per tick.
	DeliveryPolicy DeliveryPolicy

	// Escalation threshold for consecutive per-frame decode failures;
	// zero selects DefaultMaxConsecutiveDecodeFailures.
	MaxConsecutiveDecodeFailures int

	// TimeProvider drives the playback clock; nil uses system time.
	TimeProvider clock.TimeProvider
}

// withDefaults returns a copy of the config with zero values replaced
// by defaults.
func (c Config) withDefaults() Config {
	if c.VideoQueueCapacity <= 0 {
		c.VideoQueueCapacity = DefaultVideoQueueCapacity
	}
	if c.AudioQueueCapacity <= 0 {
		c.AudioQueueCapacity = DefaultAudioQueueCapacity
	}
	if c.MaxConsecutiveDecodeFailures <= 0 {
		c.MaxConsecutiveDecodeFailures = DefaultMaxConsecutiveDecodeFailures
	}
	return c
}

// validate checks the parts of the config that do not depend on stream
// discovery.
func (c Config) validate() error {
	if c.Demuxer == nil {
		return ErrNilDemuxer
	}
	return nil
}
