// Package flacdec adapts mewkiz/flac to the playback.Demuxer contract,
// turning a FLAC file into timestamped 16-bit interleaved PCM packets.
// Pair it with the pcmdec passthrough decoder.
package flacdec

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playback"
	"github.com/opd-ai/playback/media"
)

const bytesPerSample = 2

// Demuxer streams decoded PCM packets from a FLAC file, one FLAC frame
// per packet.
type Demuxer struct {
	path   string
	file   *os.File
	stream *flac.Stream

	sampleRate int
	channels   int
	bitDepth   int
	pos        int64
	payload    []byte
}

// New creates a demuxer for the FLAC file at path.
func New(path string) *Demuxer {
	return &Demuxer{path: path}
}

// Open opens the file and parses the stream info block. Calling Open
// on an already open source returns the cached stream info.
func (d *Demuxer) Open() (playback.StreamInfo, error) {
	if d.stream != nil {
		return d.info(), nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return playback.StreamInfo{}, fmt.Errorf("opening flac file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return playback.StreamInfo{}, fmt.Errorf("parsing flac stream: %w", err)
	}

	d.file = f
	d.stream = stream
	d.sampleRate = int(stream.Info.SampleRate)
	d.channels = int(stream.Info.NChannels)
	d.bitDepth = int(stream.Info.BitsPerSample)

	logrus.WithFields(logrus.Fields{
		"function":    "Open",
		"path":        d.path,
		"sample_rate": d.sampleRate,
		"channels":    d.channels,
		"bit_depth":   d.bitDepth,
	}).Info("FLAC source opened")

	return d.info(), nil
}

func (d *Demuxer) info() playback.StreamInfo {
	return playback.StreamInfo{
		HasAudio:       true,
		SampleRate:     d.sampleRate,
		Channels:       d.channels,
		BytesPerSample: bytesPerSample,
	}
}

// ReadPacket parses the next FLAC frame and emits it as 16-bit
// interleaved PCM. Data is reused between calls.
func (d *Demuxer) ReadPacket() (media.Packet, error) {
	if d.stream == nil {
		return media.Packet{}, fmt.Errorf("flac source not open")
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return media.Packet{}, io.EOF
		}
		return media.Packet{}, fmt.Errorf("parsing flac frame: %w", err)
	}

	blockSize := int(frame.BlockSize)
	need := blockSize * d.channels * bytesPerSample
	if cap(d.payload) < need {
		d.payload = make([]byte, need)
	}
	payload := d.payload[:need]

	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < d.channels; ch++ {
			sample := d.toInt16(frame.Subframes[ch].Samples[i])
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
	d.pos += int64(blockSize)
	return pkt, nil
}

// toInt16 scales a sample from the stream's bit depth to 16 bits.
func (d *Demuxer) toInt16(sample int32) int16 {
	shift := d.bitDepth - 16
	switch {
	case shift > 0:
		return int16(sample >> shift)
	case shift < 0:
		return int16(sample << -shift)
	default:
		return int16(sample)
	}
}

// Close releases the underlying file.
func (d *Demuxer) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.stream = nil
	return err
}
