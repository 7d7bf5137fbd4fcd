package playback_test

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/playback"
	"github.com/opd-ai/playback/media"
	"github.com/opd-ai/playback/source/pcmdec"
	"github.com/opd-ai/playback/source/tone"
)

// fakeTime is a deterministic clock.TimeProvider advanced by tests.
type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Unix(1000, 0)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// scriptSource is a Demuxer that replays a fixed packet script.
type scriptSource struct {
	info    playback.StreamInfo
	packets []media.Packet

	mu     sync.Mutex
	next   int
	closed bool
}

func (s *scriptSource) Open() (playback.StreamInfo, error) {
	return s.info, nil
}

func (s *scriptSource) ReadPacket() (media.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.packets) {
		return media.Packet{}, io.EOF
	}
	pkt := s.packets[s.next]
	s.next++
	return pkt, nil
}

func (s *scriptSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptSource) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// videoPackets builds one video packet per second of pts, 0..n-1.
func videoPackets(n int) []media.Packet {
	pkts := make([]media.Packet, n)
	for i := range pkts {
		pkts[i] = media.Packet{
			Track:     media.TrackVideo,
			Data:      []byte{0xAA},
			Timestamp: int64(i),
			TimeBase:  media.TimeBase{Num: 1, Den: 1},
		}
	}
	return pkts
}

func audioPackets(n int) []media.Packet {
	pkts := videoPackets(n)
	for i := range pkts {
		pkts[i].Track = media.TrackAudio
	}
	return pkts
}

// stubVideoDecoder produces one tiny frame per packet, optionally
// failing on selected timestamps.
type stubVideoDecoder struct {
	failAt map[int64]bool
}

func (d *stubVideoDecoder) Decode(pkt media.Packet, dst *media.PixelBuffer) (bool, error) {
	if d.failAt[pkt.Timestamp] {
		return false, errors.New("corrupt packet")
	}
	dst.Data = dst.Data[:4]
	dst.Width = 1
	dst.Height = 1
	dst.Stride = 4
	return true, nil
}

func (d *stubVideoDecoder) Close() error { return nil }

// stubAudioDecoder produces one tiny audio frame per packet.
type stubAudioDecoder struct{}

func (d *stubAudioDecoder) Decode(pkt media.Packet, dst *media.SampleBuffer) (bool, error) {
	dst.Data = dst.Data[:4]
	dst.Samples = 1
	return true, nil
}

func (d *stubAudioDecoder) Close() error { return nil }

// collectVideoSink records the pts of every presented frame.
type collectVideoSink struct {
	mu  sync.Mutex
	pts []float64
}

func (s *collectVideoSink) Present(f *media.VideoFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pts = append(s.pts, f.PTS())
	return nil
}

func (s *collectVideoSink) presented() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.pts...)
}

// collectAudioSink records the pts of every written frame.
type collectAudioSink struct {
	mu  sync.Mutex
	pts []float64
}

func (s *collectAudioSink) Write(f *media.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pts = append(s.pts, f.PTS())
	return nil
}

func (s *collectAudioSink) written() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.pts...)
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func videoInfo() playback.StreamInfo {
	return playback.StreamInfo{HasVideo: true, Width: 2, Height: 2}
}

func audioInfo() playback.StreamInfo {
	return playback.StreamInfo{HasAudio: true, SampleRate: 48000, Channels: 2, BytesPerSample: 2}
}

// TestNewValidation verifies that setup failures are classified and
// fatal.
func TestNewValidation(t *testing.T) {
	_, err := playback.New(playback.Config{})
	assert.ErrorIs(t, err, playback.ErrSetupFailed)
	assert.ErrorIs(t, err, playback.ErrNilDemuxer)
}

// TestNewMissingDecoder verifies that a stream track without a decoder
// aborts startup and rolls the demuxer back.
func TestNewMissingDecoder(t *testing.T) {
	src := &scriptSource{info: videoInfo()}
	_, err := playback.New(playback.Config{Demuxer: src})

	assert.ErrorIs(t, err, playback.ErrSetupFailed)
	assert.ErrorIs(t, err, playback.ErrNoDecoder)
	assert.True(t, src.wasClosed())
}

// TestStateLifecycle verifies the Idle → Running → Stopped transitions
// and the operations each state rejects.
func TestStateLifecycle(t *testing.T) {
	src := &scriptSource{info: videoInfo(), packets: videoPackets(1)}
	p, err := playback.New(playback.Config{
		Demuxer:      src,
		VideoDecoder: &stubVideoDecoder{},
		TimeProvider: newFakeTime(),
	})
	require.NoError(t, err)

	assert.Equal(t, playback.StateIdle, p.State())
	assert.ErrorIs(t, p.Tick(), playback.ErrInvalidState)

	require.NoError(t, p.Start())
	assert.Equal(t, playback.StateRunning, p.State())
	assert.ErrorIs(t, p.Start(), playback.ErrInvalidState)

	require.NoError(t, p.Stop())
	assert.Equal(t, playback.StateStopped, p.State())
	assert.True(t, src.wasClosed())

	// Stopping again is a no-op; ticking is not.
	assert.NoError(t, p.Stop())
	assert.ErrorIs(t, p.Tick(), playback.ErrInvalidState)
}

// TestDeliverAllPolicy verifies the every-due-frame policy from the
// synthetic stream: frames at pts 0..9 with the clock at 5.5 yield
// exactly 0..5 in order.
func TestDeliverAllPolicy(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: videoInfo(), packets: videoPackets(10)}
	sink := &collectVideoSink{}

	p, err := playback.New(playback.Config{
		Demuxer:        src,
		VideoDecoder:   &stubVideoDecoder{},
		VideoSink:      sink,
		DeliveryPolicy: playback.DeliverAll,
		TimeProvider:   ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitFor(t, func() bool { return p.Stats().VideoDecoded == 10 },
		"decode loop did not fill the queue")

	ft.Advance(5500 * time.Millisecond)
	require.NoError(t, p.Tick())

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, sink.presented())
	assert.Equal(t, int64(0), p.Stats().VideoDropped)
}

// TestDeliverFreshestPolicy verifies the latency-bounding policy: the
// same backlog yields only frame 5, with 0..4 dropped.
func TestDeliverFreshestPolicy(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: videoInfo(), packets: videoPackets(10)}
	sink := &collectVideoSink{}

	p, err := playback.New(playback.Config{
		Demuxer:        src,
		VideoDecoder:   &stubVideoDecoder{},
		VideoSink:      sink,
		DeliveryPolicy: playback.DeliverFreshest,
		TimeProvider:   ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitFor(t, func() bool { return p.Stats().VideoDecoded == 10 },
		"decode loop did not fill the queue")

	ft.Advance(5500 * time.Millisecond)
	require.NoError(t, p.Tick())

	assert.Equal(t, []float64{5}, sink.presented())
	assert.Equal(t, int64(5), p.Stats().VideoDropped)
}

// TestAudioDeliversEveryDueFrame verifies that audio is never subject
// to the freshest-only policy.
func TestAudioDeliversEveryDueFrame(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: audioInfo(), packets: audioPackets(10)}
	sink := &collectAudioSink{}

	p, err := playback.New(playback.Config{
		Demuxer:      src,
		AudioDecoder: &stubAudioDecoder{},
		AudioSink:    sink,
		TimeProvider: ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitFor(t, func() bool { return p.Stats().AudioDecoded == 10 },
		"decode loop did not fill the queue")

	ft.Advance(5500 * time.Millisecond)
	require.NoError(t, p.Tick())

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, sink.written())
}

// TestPauseGatesConsumption verifies that a paused clock stops frames
// from becoming due, and resume continues from the frozen position.
func TestPauseGatesConsumption(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: audioInfo(), packets: audioPackets(10)}
	sink := &collectAudioSink{}

	p, err := playback.New(playback.Config{
		Demuxer:      src,
		AudioDecoder: &stubAudioDecoder{},
		AudioSink:    sink,
		TimeProvider: ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitFor(t, func() bool { return p.Stats().AudioDecoded == 10 },
		"decode loop did not fill the queue")

	ft.Advance(1500 * time.Millisecond)
	require.NoError(t, p.Tick())
	assert.Equal(t, []float64{0, 1}, sink.written())

	p.Pause()
	ft.Advance(10 * time.Second)
	require.NoError(t, p.Tick())
	assert.Equal(t, []float64{0, 1}, sink.written())
	assert.InDelta(t, 1.5, p.Position(), 1e-6)

	p.Resume()
	ft.Advance(time.Second)
	require.NoError(t, p.Tick())
	assert.Equal(t, []float64{0, 1, 2}, sink.written())
}

// TestSpeedScalesConsumption verifies that doubling the speed makes
// frames due twice as fast.
func TestSpeedScalesConsumption(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: audioInfo(), packets: audioPackets(10)}
	sink := &collectAudioSink{}

	p, err := playback.New(playback.Config{
		Demuxer:      src,
		AudioDecoder: &stubAudioDecoder{},
		AudioSink:    sink,
		TimeProvider: ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitFor(t, func() bool { return p.Stats().AudioDecoded == 10 },
		"decode loop did not fill the queue")

	require.NoError(t, p.SetSpeed(2.0))
	ft.Advance(2 * time.Second)
	require.NoError(t, p.Tick())

	// Two wall seconds at 2x covers pts 0..4.
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, sink.written())
}

// TestFinishedAfterDrain verifies the clean-completion signal: end of
// stream plus empty queues.
func TestFinishedAfterDrain(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: audioInfo(), packets: audioPackets(3)}
	sink := &collectAudioSink{}

	p, err := playback.New(playback.Config{
		Demuxer:      src,
		AudioDecoder: &stubAudioDecoder{},
		AudioSink:    sink,
		TimeProvider: ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())

	waitFor(t, func() bool { return p.Stats().AudioDecoded == 3 },
		"decode loop did not finish input")
	assert.False(t, p.Finished())

	ft.Advance(5 * time.Second)
	require.NoError(t, p.Tick())

	waitFor(t, func() bool { return p.Finished() }, "pipeline never finished")
	assert.Equal(t, []float64{0, 1, 2}, sink.written())
	assert.NoError(t, p.Err())
	require.NoError(t, p.Stop())
}

// TestSkippableDecodeFailure verifies local recovery: a corrupt frame
// is dropped, playback continues, and the failure is counted.
func TestSkippableDecodeFailure(t *testing.T) {
	ft := newFakeTime()
	src := &scriptSource{info: videoInfo(), packets: videoPackets(5)}
	sink := &collectVideoSink{}

	p, err := playback.New(playback.Config{
		Demuxer:        src,
		VideoDecoder:   &stubVideoDecoder{failAt: map[int64]bool{2: true}},
		VideoSink:      sink,
		DeliveryPolicy: playback.DeliverAll,
		TimeProvider:   ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitFor(t, func() bool { return p.Stats().VideoDecoded == 4 },
		"decode loop did not process the script")

	ft.Advance(10 * time.Second)
	require.NoError(t, p.Tick())

	assert.Equal(t, []float64{0, 1, 3, 4}, sink.presented())
	assert.Equal(t, int64(1), p.Stats().DecodeFailures)
	assert.NoError(t, p.Err())
}

// TestDecodeFailureEscalation verifies the recurrence threshold: enough
// consecutive failures terminate the decode loop with ErrDecodeFailed.
func TestDecodeFailureEscalation(t *testing.T) {
	failAll := map[int64]bool{}
	for i := int64(0); i < 20; i++ {
		failAll[i] = true
	}

	src := &scriptSource{info: videoInfo(), packets: videoPackets(20)}
	p, err := playback.New(playback.Config{
		Demuxer:                      src,
		VideoDecoder:                 &stubVideoDecoder{failAt: failAll},
		MaxConsecutiveDecodeFailures: 5,
		TimeProvider:                 newFakeTime(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())

	waitFor(t, func() bool { return p.Err() != nil }, "decode loop never escalated")
	assert.ErrorIs(t, p.Err(), playback.ErrDecodeFailed)
	assert.Equal(t, int64(5), p.Stats().DecodeFailures)

	err = p.Stop()
	assert.ErrorIs(t, err, playback.ErrDecodeFailed)
}

// TestToneEndToEnd runs a real source and decoder through the pipeline:
// 100ms of test tone split into 20ms packets, all delivered in order.
func TestToneEndToEnd(t *testing.T) {
	ft := newFakeTime()
	src := tone.New(440, 8000, 1, 100*time.Millisecond)
	sink := &collectAudioSink{}

	p, err := playback.New(playback.Config{
		Demuxer:      src,
		AudioDecoder: pcmdec.New(1, 2),
		AudioSink:    sink,
		TimeProvider: ft,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())

	waitFor(t, func() bool { return p.Stats().AudioDecoded == 5 },
		"tone packets were not decoded")

	ft.Advance(time.Second)
	require.NoError(t, p.Tick())

	written := sink.written()
	require.Len(t, written, 5)
	for i, pts := range written {
		assert.InDelta(t, float64(i)*0.02, pts, 1e-9)
	}

	assert.True(t, p.Finished())
	require.NoError(t, p.Stop())
}
