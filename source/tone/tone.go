// Package tone provides a synthetic sine-wave audio source implementing
// the playback.Demuxer contract. It exists for examples and end-to-end
// tests that need a deterministic, dependency-free stream.
package tone

import (
	"io"
	"math"
	"time"

	"github.com/opd-ai/playback"
	"github.com/opd-ai/playback/media"
)

// packetDuration is the play length of each emitted packet.
const packetDuration = 20 * time.Millisecond

// Demuxer emits 16-bit interleaved PCM packets of a pure sine tone.
// Pair it with the pcmdec passthrough decoder.
type Demuxer struct {
	frequency  float64
	sampleRate int
	channels   int
	amplitude  float64

	packetSamples int
	totalSamples  int64
	pos           int64
	payload       []byte
	opened        bool
}

// New creates a tone source. frequency is in Hz, duration bounds the
// stream length; a non-positive duration yields an endless stream.
func New(frequency float64, sampleRate, channels int, duration time.Duration) *Demuxer {
	d := &Demuxer{
		frequency:     frequency,
		sampleRate:    sampleRate,
		channels:      channels,
		amplitude:     0.5,
		packetSamples: int(float64(sampleRate) * packetDuration.Seconds()),
	}
	if duration > 0 {
		d.totalSamples = int64(float64(sampleRate) * duration.Seconds())
	}
	d.payload = make([]byte, d.packetSamples*channels*2)
	return d
}

// Open reports the synthetic stream's format.
func (d *Demuxer) Open() (playback.StreamInfo, error) {
	d.opened = true
	return playback.StreamInfo{
		HasAudio:       true,
		SampleRate:     d.sampleRate,
		Channels:       d.channels,
		BytesPerSample: 2,
	}, nil
}

// ReadPacket synthesizes the next packet. Data is reused between calls,
// per the media.Packet ownership contract.
func (d *Demuxer) ReadPacket() (media.Packet, error) {
	if d.totalSamples > 0 && d.pos >= d.totalSamples {
		return media.Packet{}, io.EOF
	}

	n := d.packetSamples
	if d.totalSamples > 0 && d.pos+int64(n) > d.totalSamples {
		n = int(d.totalSamples - d.pos)
	}

	payload := d.payload[:n*d.channels*2]
	for i := 0; i < n; i++ {
		t := float64(d.pos+int64(i)) / float64(d.sampleRate)
		sample := int16(math.Sin(2*math.Pi*d.frequency*t) * d.amplitude * math.MaxInt16)
		for ch := 0; ch < d.channels; ch++ {
			idx := (i*d.channels + ch) * 2
			payload[idx] = byte(sample)
			payload[idx+1] = byte(sample >> 8)
		}
	}

	pkt := media.Packet{
		Track:     media.TrackAudio,
		Data:      payload,
		Timestamp: d.pos,
		TimeBase:  media.TimeBase{Num: 1, Den: d.sampleRate},
	}
	d.pos += int64(n)
	return pkt, nil
}

// Close is a no-op; the source holds no resources.
func (d *Demuxer) Close() error {
	return nil
}
