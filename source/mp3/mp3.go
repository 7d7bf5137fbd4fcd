// Package mp3 adapts hajimehoshi/go-mp3 to the playback.Demuxer
// contract, turning an MP3 file into timestamped interleaved PCM
// packets. Pair it with the pcmdec passthrough decoder.
package mp3

import (
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playback"
	"github.com/opd-ai/playback/media"
)

// go-mp3 always outputs 16-bit stereo.
const (
	channels       = 2
	bytesPerSample = 2

	// packetFrames is the number of sample frames per emitted packet,
	// one MPEG granule pair worth at any sample rate.
	packetFrames = 1152
)

// Demuxer streams decoded PCM packets from an MP3 file.
type Demuxer struct {
	path    string
	file    *os.File
	decoder *gomp3.Decoder
	pos     int64
	payload []byte
}

// New creates a demuxer for the MP3 file at path. The file is opened
// by Open so construction never touches the filesystem.
func New(path string) *Demuxer {
	return &Demuxer{path: path}
}

// Open opens the file and initializes the decoder. Calling Open on an
// already open source returns the cached stream info, so a host may
// probe the format before handing the demuxer to a pipeline.
func (d *Demuxer) Open() (playback.StreamInfo, error) {
	if d.decoder != nil {
		return d.info(), nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return playback.StreamInfo{}, fmt.Errorf("opening mp3 file: %w", err)
	}

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return playback.StreamInfo{}, fmt.Errorf("initializing mp3 decoder: %w", err)
	}

	d.file = f
	d.decoder = dec
	d.payload = make([]byte, packetFrames*channels*bytesPerSample)

	logrus.WithFields(logrus.Fields{
		"function":    "Open",
		"path":        d.path,
		"sample_rate": dec.SampleRate(),
	}).Info("MP3 source opened")

	return d.info(), nil
}

func (d *Demuxer) info() playback.StreamInfo {
	return playback.StreamInfo{
		HasAudio:       true,
		SampleRate:     d.decoder.SampleRate(),
		Channels:       channels,
		BytesPerSample: bytesPerSample,
	}
}

// ReadPacket returns the next block of decoded PCM. Data is reused
// between calls, per the media.Packet ownership contract.
func (d *Demuxer) ReadPacket() (media.Packet, error) {
	if d.decoder == nil {
		return media.Packet{}, fmt.Errorf("mp3 source not open")
	}

	n, err := io.ReadFull(d.decoder, d.payload)
	if err == io.ErrUnexpectedEOF {
		err = nil // short final packet
	}
	if err != nil {
		if err == io.EOF {
			return media.Packet{}, io.EOF
		}
		return media.Packet{}, fmt.Errorf("reading mp3 stream: %w", err)
	}
	if n == 0 {
		return media.Packet{}, io.EOF
	}

	// Trim to whole sample frames.
	frameBytes := channels * bytesPerSample
	n -= n % frameBytes

	pkt := media.Packet{
		Track:     media.TrackAudio,
		Data:      d.payload[:n],
		Timestamp: d.pos,
		TimeBase:  media.TimeBase{Num: 1, Den: d.decoder.SampleRate()},
	}
	d.pos += int64(n / frameBytes)
	return pkt, nil
}

// Close releases the underlying file.
func (d *Demuxer) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.decoder = nil
	return err
}
