// Package pcmdec provides a passthrough audio decoder for packets that
// already carry interleaved PCM, such as those produced by the tone,
// mp3, and flacdec sources.
package pcmdec

import (
	"fmt"

	"github.com/opd-ai/playback/media"
)

// Decoder copies PCM packet payloads into pooled sample buffers.
type Decoder struct {
	channels       int
	bytesPerSample int
}

// New creates a passthrough decoder for the given interleaved format.
func New(channels, bytesPerSample int) *Decoder {
	return &Decoder{
		channels:       channels,
		bytesPerSample: bytesPerSample,
	}
}

// Decode copies the packet payload into dst and derives the sample
// count from the configured frame size.
func (d *Decoder) Decode(pkt media.Packet, dst *media.SampleBuffer) (bool, error) {
	if len(pkt.Data) == 0 {
		return false, nil
	}

	frameBytes := d.channels * d.bytesPerSample
	if frameBytes <= 0 || len(pkt.Data)%frameBytes != 0 {
		return false, fmt.Errorf("pcm payload of %d bytes is not a multiple of frame size %d",
			len(pkt.Data), frameBytes)
	}
	if len(pkt.Data) > cap(dst.Data) {
		return false, fmt.Errorf("pcm payload of %d bytes exceeds buffer capacity %d",
			len(pkt.Data), cap(dst.Data))
	}

	dst.Data = dst.Data[:len(pkt.Data)]
	copy(dst.Data, pkt.Data)
	dst.Samples = len(pkt.Data) / frameBytes
	return true, nil
}

// Close is a no-op; the decoder holds no resources.
func (d *Decoder) Close() error {
	return nil
}
