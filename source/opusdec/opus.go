// Package opusdec adapts the pure Go pion/opus decoder to the
// playback.AudioDecoder contract for streams whose packets carry raw
// Opus frames.
package opusdec

import (
	"fmt"

	"github.com/pion/opus"

	"github.com/opd-ai/playback/media"
)

// Opus always decodes at 48kHz; a standard 20ms frame is 960 samples
// per channel at 2 bytes each.
const (
	frameSamples = 960
	monoBytes    = frameSamples * 2
	stereoBytes  = frameSamples * 4
)

// Decoder decodes raw Opus packets into pooled sample buffers.
type Decoder struct {
	decoder *opus.Decoder
	scratch []byte
}

// New creates an Opus decoder.
func New() *Decoder {
	dec := opus.NewDecoder()
	return &Decoder{
		decoder: &dec,
		scratch: make([]byte, stereoBytes),
	}
}

// Decode decodes one Opus packet. Empty packets produce no frame.
func (d *Decoder) Decode(pkt media.Packet, dst *media.SampleBuffer) (bool, error) {
	if len(pkt.Data) == 0 {
		return false, nil
	}

	_, isStereo, err := d.decoder.Decode(pkt.Data, d.scratch)
	if err != nil {
		return false, fmt.Errorf("opus decode failed: %w", err)
	}

	n := monoBytes
	if isStereo {
		n = stereoBytes
	}
	if n > cap(dst.Data) {
		return false, fmt.Errorf("opus frame of %d bytes exceeds buffer capacity %d", n, cap(dst.Data))
	}

	dst.Data = dst.Data[:n]
	copy(dst.Data, d.scratch[:n])
	dst.Samples = frameSamples
	return true, nil
}

// Close is a no-op; the decoder holds no external resources.
func (d *Decoder) Close() error {
	return nil
}
