// Package speaker provides an audio sink backed by ebitengine/oto,
// playing 16-bit interleaved PCM frames on the system audio device.
//
// Frames written by the pipeline land in an instance-owned ring buffer
// that the oto player drains on its own thread; underruns play silence
// rather than stalling the device.
package speaker

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playback/media"
)

// DefaultBuffer is the ring capacity expressed as play time.
const DefaultBuffer = 500 * time.Millisecond

// Speaker implements playback.AudioSink on the system audio device.
type Speaker struct {
	sampleRate int
	channels   int

	ring   *ring
	otoCtx *oto.Context
	player *oto.Player
}

// New opens the audio device for 16-bit output at the given format.
// bufferFor sizes the ring; zero selects DefaultBuffer. Note that oto
// allows only one context per process.
func New(sampleRate, channels int, bufferFor time.Duration) (*Speaker, error) {
	if bufferFor <= 0 {
		bufferFor = DefaultBuffer
	}

	ringBytes := int(float64(sampleRate) * bufferFor.Seconds() * float64(channels) * 2)
	rb := newRing(ringBytes)

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("creating audio context: %w", err)
	}
	<-ready

	s := &Speaker{
		sampleRate: sampleRate,
		channels:   channels,
		ring:       rb,
		otoCtx:     otoCtx,
		player:     otoCtx.NewPlayer(rb),
	}
	s.player.Play()

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"sample_rate": sampleRate,
		"channels":    channels,
		"ring_bytes":  ringBytes,
	}).Info("Speaker sink opened")

	return s, nil
}

// Write queues a frame's samples for playback. The frame must carry
// 16-bit samples in the format the speaker was opened with.
func (s *Speaker) Write(frame *media.AudioFrame) error {
	if frame.BytesPerSample != 2 {
		return fmt.Errorf("speaker requires 16-bit samples, got %d bytes per sample", frame.BytesPerSample)
	}
	if frame.SampleRate != s.sampleRate || frame.Channels != s.channels {
		return fmt.Errorf("frame format %dHz %dch does not match device %dHz %dch",
			frame.SampleRate, frame.Channels, s.sampleRate, s.channels)
	}

	_, err := s.ring.Write(frame.Data())
	return err
}

// Buffered returns the queued play time not yet sent to the device.
func (s *Speaker) Buffered() time.Duration {
	bytesPerSecond := s.sampleRate * s.channels * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(float64(s.ring.Buffered()) / float64(bytesPerSecond) * float64(time.Second))
}

// Close stops playback and releases the device player. The underlying
// oto context cannot be closed and is reused for the process lifetime.
func (s *Speaker) Close() error {
	if s.player == nil {
		return nil
	}

	overruns, underruns := s.ring.Stats()
	logrus.WithFields(logrus.Fields{
		"function":  "Close",
		"overruns":  overruns,
		"underruns": underruns,
	}).Info("Speaker sink closing")

	err := s.player.Close()
	s.player = nil
	return err
}
