package media

// TrackType identifies which elementary stream a packet belongs to.
type TrackType uint8

const (
	// TrackVideo marks a packet from the video elementary stream.
	TrackVideo TrackType = iota
	// TrackAudio marks a packet from the audio elementary stream.
	TrackAudio
)

// String returns a human-readable track name for logging.
func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// TimeBase is the rational unit of a container timestamp, in seconds.
// A timestamp of N ticks represents N * Num / Den seconds.
type TimeBase struct {
	Num int
	Den int
}

// Seconds converts a tick count in this time base to seconds.
// A zero-valued time base yields 0 rather than dividing by zero;
// demuxers are expected to validate their time base at open.
func (tb TimeBase) Seconds(ticks int64) float64 {
	if tb.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(tb.Num) / float64(tb.Den)
}

// Valid reports whether the time base can convert timestamps.
func (tb TimeBase) Valid() bool {
	return tb.Num > 0 && tb.Den > 0
}

// Packet is one demuxed unit of elementary-stream data before decoding.
// Data is owned by the demuxer and only valid until the next ReadPacket
// call; decoders must copy what they need into their output buffer.
type Packet struct {
	Track     TrackType
	Data      []byte
	Timestamp int64
	TimeBase  TimeBase
	Keyframe  bool
}

// PTS returns the packet's presentation time in seconds.
func (p Packet) PTS() float64 {
	return p.TimeBase.Seconds(p.Timestamp)
}
