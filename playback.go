package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/playback/buffer"
	"github.com/opd-ai/playback/clock"
	"github.com/opd-ai/playback/media"
	"github.com/opd-ai/playback/queue"
)

// State is the pipeline lifecycle state visible to the host.
type State uint32

const (
	// StateIdle is the state between New and Start.
	StateIdle State = iota
	// StateRunning means the decode goroutine is live and Tick delivers frames.
	StateRunning
	// StateDraining is the transient state inside Stop while the decode
	// goroutine is being joined and queues are being drained.
	StateDraining
	// StateStopped is terminal; all resources have been released.
	StateStopped
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// errShutdown signals inside the decode loop that the pipeline is
// shutting down and the loop should exit cleanly.
var errShutdown = errors.New("pipeline shutting down")

// Pipeline owns the decode goroutine and the per-tick consumption
// routine, wiring pools, queues, clock, and the external collaborators
// together.
type Pipeline struct {
	id   string
	cfg  Config
	info StreamInfo
	log  *logrus.Entry

	clk *clock.Clock

	videoPool *buffer.Pool[media.PixelBuffer]
	audioPool *buffer.Pool[media.SampleBuffer]

	videoQueue *queue.Queue[*media.VideoFrame]
	audioQueue *queue.Queue[*media.AudioFrame]

	mu      sync.RWMutex
	state   State
	termErr error

	inputDone atomic.Bool

	cancel context.CancelFunc
	group  *errgroup.Group

	counters counters
}

// New discovers the stream via the configured demuxer and allocates
// pools and queues sized for it. Setup failures are fatal: the error is
// wrapped with ErrSetupFailed and any partially acquired resources are
// rolled back before returning.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	cfg = cfg.withDefaults()

	id := uuid.New().String()
	log := logrus.WithFields(logrus.Fields{
		"component":   "playback",
		"pipeline_id": id,
	})

	info, err := cfg.Demuxer.Open()
	if err != nil {
		log.WithError(err).Error("Stream discovery failed")
		return nil, fmt.Errorf("%w: opening stream: %w", ErrSetupFailed, err)
	}

	p := &Pipeline{
		id:    id,
		cfg:   cfg,
		info:  info,
		log:   log,
		clk:   clock.New(cfg.TimeProvider),
		state: StateIdle,
	}

	if err := p.setup(); err != nil {
		// Rollback: the demuxer is the only resource acquired so far.
		if cerr := cfg.Demuxer.Close(); cerr != nil {
			log.WithError(cerr).Warn("Demuxer close failed during setup rollback")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"function":        "New",
		"has_video":       info.HasVideo,
		"has_audio":       info.HasAudio,
		"video_queue_cap": cfg.VideoQueueCapacity,
		"audio_queue_cap": cfg.AudioQueueCapacity,
		"delivery_policy": cfg.DeliveryPolicy.String(),
	}).Info("Pipeline created")

	return p, nil
}

// setup validates the discovered stream against the configured
// collaborators and allocates pools and queues.
func (p *Pipeline) setup() error {
	info := &p.info

	if info.HasVideo {
		if p.cfg.VideoDecoder == nil {
			return fmt.Errorf("%w: %w: video", ErrSetupFailed, ErrNoDecoder)
		}
		if info.Width <= 0 || info.Height <= 0 {
			return fmt.Errorf("%w: invalid video dimensions %dx%d", ErrSetupFailed, info.Width, info.Height)
		}
		if info.Stride <= 0 {
			info.Stride = info.Width * 4
		}
	}
	if info.HasAudio {
		if p.cfg.AudioDecoder == nil {
			return fmt.Errorf("%w: %w: audio", ErrSetupFailed, ErrNoDecoder)
		}
		if info.SampleRate <= 0 || info.Channels <= 0 || info.BytesPerSample <= 0 {
			return fmt.Errorf("%w: invalid audio format %dHz %dch %dB", ErrSetupFailed,
				info.SampleRate, info.Channels, info.BytesPerSample)
		}
	}
	if !info.HasVideo && !info.HasAudio {
		return fmt.Errorf("%w: stream has no tracks", ErrSetupFailed)
	}

	var err error
	if p.videoQueue, err = queue.New[*media.VideoFrame](p.cfg.VideoQueueCapacity); err != nil {
		return fmt.Errorf("%w: video queue: %w", ErrSetupFailed, err)
	}
	if p.audioQueue, err = queue.New[*media.AudioFrame](p.cfg.AudioQueueCapacity); err != nil {
		return fmt.Errorf("%w: audio queue: %w", ErrSetupFailed, err)
	}

	if info.HasVideo {
		pixelBytes := info.Stride * info.Height
		p.videoPool, err = buffer.NewPool(
			p.cfg.VideoQueueCapacity+poolHeadroom,
			func() *media.PixelBuffer {
				return &media.PixelBuffer{Data: make([]byte, 0, pixelBytes)}
			},
			(*media.PixelBuffer).Reset,
		)
		if err != nil {
			return fmt.Errorf("%w: video pool: %w", ErrSetupFailed, err)
		}
	}
	if info.HasAudio {
		// Room for 250ms of interleaved samples per slot, which covers
		// every common codec frame size with margin.
		sampleBytes := info.SampleRate * info.Channels * info.BytesPerSample / 4
		p.audioPool, err = buffer.NewPool(
			p.cfg.AudioQueueCapacity+poolHeadroom,
			func() *media.SampleBuffer {
				return &media.SampleBuffer{Data: make([]byte, 0, sampleBytes)}
			},
			(*media.SampleBuffer).Reset,
		)
		if err != nil {
			return fmt.Errorf("%w: audio pool: %w", ErrSetupFailed, err)
		}
	}
	return nil
}

// Info returns the stream description discovered at setup.
func (p *Pipeline) Info() StreamInfo {
	return p.info
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Err returns the terminal decode error, if the decode loop failed.
// End of stream is not an error and never appears here.
func (p *Pipeline) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.termErr
}

// Start transitions the pipeline to Running and spawns the decode
// goroutine. It may be called once.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, state)
	}
	p.state = StateRunning
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)

	p.clk.Reset()
	p.group.Go(func() error {
		err := p.decodeLoop(ctx)
		if err != nil {
			p.setTermErr(err)
			p.log.WithError(err).Error("Decode loop terminated with error")
		}
		return err
	})

	p.log.WithFields(logrus.Fields{
		"function": "Start",
	}).Info("Pipeline started")
	return nil
}

// decodeLoop is the producer: it reads packets from the demuxer,
// decodes them into pool-acquired buffers, and pushes timestamped
// frames into the per-track queues until end of stream, cancellation,
// or an unrecoverable error.
func (p *Pipeline) decodeLoop(ctx context.Context) error {
	// Whatever the exit reason, no more input will arrive.
	defer p.inputDone.Store(true)

	consecutive := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		pkt, err := p.cfg.Demuxer.ReadPacket()
		if errors.Is(err, io.EOF) {
			p.log.WithFields(logrus.Fields{
				"function": "decodeLoop",
			}).Info("End of stream reached")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading packet: %w", err)
		}

		var skipped bool
		switch pkt.Track {
		case media.TrackVideo:
			skipped, err = p.decodeVideoPacket(ctx, pkt)
		case media.TrackAudio:
			skipped, err = p.decodeAudioPacket(ctx, pkt)
		default:
			p.log.WithFields(logrus.Fields{
				"function": "decodeLoop",
				"track":    pkt.Track.String(),
			}).Debug("Skipping packet from unknown track")
			continue
		}
		if err != nil {
			if errors.Is(err, errShutdown) {
				return nil
			}
			return err
		}

		if skipped {
			consecutive++
			p.counters.decodeFailures.Add(1)
			if consecutive >= p.cfg.MaxConsecutiveDecodeFailures {
				return fmt.Errorf("%w: %d consecutive frame failures", ErrDecodeFailed, consecutive)
			}
		} else {
			consecutive = 0
		}
	}
}

// decodeVideoPacket runs one packet through decode, convert, and
// enqueue. It returns skipped=true for a recoverable per-frame failure
// (the frame is dropped) and a non-nil error only for shutdown or an
// unrecoverable condition.
func (p *Pipeline) decodeVideoPacket(ctx context.Context, pkt media.Packet) (bool, error) {
	if p.cfg.VideoDecoder == nil || p.videoPool == nil {
		return false, nil
	}

	buf, err := p.videoPool.AcquireWait(ctx)
	if err != nil {
		return false, errShutdown
	}

	produced, err := p.cfg.VideoDecoder.Decode(pkt, buf)
	if err != nil {
		p.releaseVideoSlot(buf)
		p.log.WithError(err).WithFields(logrus.Fields{
			"function": "decodeVideoPacket",
			"pts":      pkt.PTS(),
		}).Warn("Video decode failed, dropping frame")
		return true, nil
	}
	if !produced {
		p.releaseVideoSlot(buf)
		return false, nil
	}

	if conv := p.cfg.VideoConverter; conv != nil {
		if err := conv.Convert(buf); err != nil {
			p.releaseVideoSlot(buf)
			p.log.WithError(err).WithFields(logrus.Fields{
				"function": "decodeVideoPacket",
				"pts":      pkt.PTS(),
			}).Warn("Video convert failed, dropping frame")
			return true, nil
		}
	}

	frame := media.NewVideoFrame(buf, pkt.PTS(), func() {
		p.releaseVideoSlot(buf)
	})
	if err := p.videoQueue.Push(frame); err != nil {
		// Queue closed by Stop while we were blocked.
		if rerr := frame.Release(); rerr != nil {
			p.log.WithError(rerr).Warn("Frame release failed after queue close")
		}
		return false, errShutdown
	}
	p.counters.videoDecoded.Add(1)
	return false, nil
}

// decodeAudioPacket mirrors decodeVideoPacket for the audio track.
func (p *Pipeline) decodeAudioPacket(ctx context.Context, pkt media.Packet) (bool, error) {
	if p.cfg.AudioDecoder == nil || p.audioPool == nil {
		return false, nil
	}

	buf, err := p.audioPool.AcquireWait(ctx)
	if err != nil {
		return false, errShutdown
	}

	produced, err := p.cfg.AudioDecoder.Decode(pkt, buf)
	if err != nil {
		p.releaseAudioSlot(buf)
		p.log.WithError(err).WithFields(logrus.Fields{
			"function": "decodeAudioPacket",
			"pts":      pkt.PTS(),
		}).Warn("Audio decode failed, dropping frame")
		return true, nil
	}
	if !produced {
		p.releaseAudioSlot(buf)
		return false, nil
	}

	if conv := p.cfg.AudioConverter; conv != nil {
		if err := conv.Convert(buf); err != nil {
			p.releaseAudioSlot(buf)
			p.log.WithError(err).WithFields(logrus.Fields{
				"function": "decodeAudioPacket",
				"pts":      pkt.PTS(),
			}).Warn("Audio convert failed, dropping frame")
			return true, nil
		}
	}

	frame := media.NewAudioFrame(buf, p.info.Channels, p.info.SampleRate,
		p.info.BytesPerSample, pkt.PTS(), func() {
			p.releaseAudioSlot(buf)
		})
	if err := p.audioQueue.Push(frame); err != nil {
		if rerr := frame.Release(); rerr != nil {
			p.log.WithError(rerr).Warn("Frame release failed after queue close")
		}
		return false, errShutdown
	}
	p.counters.audioDecoded.Add(1)
	return false, nil
}

func (p *Pipeline) releaseVideoSlot(buf *media.PixelBuffer) {
	if err := p.videoPool.Release(buf); err != nil {
		p.log.WithError(err).Error("Video pool release failed")
	}
}

func (p *Pipeline) releaseAudioSlot(buf *media.SampleBuffer) {
	if err := p.audioPool.Release(buf); err != nil {
		p.log.WithError(err).Error("Audio pool release failed")
	}
}

// Tick runs one clock-gated consumption pass. It is non-blocking and
// must be called from a single host thread, typically once per render
// or event loop iteration.
func (p *Pipeline) Tick() error {
	if p.State() != StateRunning {
		return fmt.Errorf("%w: tick requires running pipeline", ErrInvalidState)
	}

	now := p.clk.Seconds()
	p.consumeAudio(now)
	p.consumeVideo(now)
	return nil
}

// consumeAudio delivers every audio frame whose presentation time has
// elapsed. Audio is never dropped: skipping samples is audible.
func (p *Pipeline) consumeAudio(now float64) {
	for {
		head, ok := p.audioQueue.Peek()
		if !ok || head.PTS() > now {
			return
		}
		frame, err := p.audioQueue.Pop()
		if err != nil {
			return
		}
		if sink := p.cfg.AudioSink; sink != nil {
			if werr := sink.Write(frame); werr != nil {
				p.log.WithError(werr).Warn("Audio sink write failed")
			}
		}
		p.releaseFrame(frame)
		p.counters.audioDelivered.Add(1)
	}
}

// consumeVideo delivers due video frames per the configured policy:
// every due frame in order, or only the freshest with the earlier ones
// dropped to bound latency under backlog.
func (p *Pipeline) consumeVideo(now float64) {
	var freshest *media.VideoFrame

	for {
		head, ok := p.videoQueue.Peek()
		if !ok || head.PTS() > now {
			break
		}
		frame, err := p.videoQueue.Pop()
		if err != nil {
			break
		}

		switch p.cfg.DeliveryPolicy {
		case DeliverAll:
			p.presentVideo(frame)
		default:
			if freshest != nil {
				p.releaseFrame(freshest)
				p.counters.videoDropped.Add(1)
			}
			freshest = frame
		}
	}

	if freshest != nil {
		p.presentVideo(freshest)
	}
}

func (p *Pipeline) presentVideo(frame *media.VideoFrame) {
	if sink := p.cfg.VideoSink; sink != nil {
		if err := sink.Present(frame); err != nil {
			p.log.WithError(err).Warn("Video sink present failed")
		}
	}
	p.releaseFrame(frame)
	p.counters.videoDelivered.Add(1)
}

func (p *Pipeline) releaseFrame(frame media.Frame) {
	if err := frame.Release(); err != nil {
		p.log.WithError(err).Error("Frame release failed")
	}
}

// Pause freezes the playback clock. Frames already due remain due; no
// new frames become due until Resume.
func (p *Pipeline) Pause() {
	p.clk.Pause()
	p.log.WithFields(logrus.Fields{
		"function": "Pause",
		"position": p.clk.Seconds(),
	}).Debug("Playback paused")
}

// Resume continues the playback clock from where Pause froze it.
func (p *Pipeline) Resume() {
	p.clk.Resume()
	p.log.WithFields(logrus.Fields{
		"function": "Resume",
		"position": p.clk.Seconds(),
	}).Debug("Playback resumed")
}

// SetSpeed changes the playback rate without a discontinuity.
func (p *Pipeline) SetSpeed(factor float64) error {
	return p.clk.SetSpeed(factor)
}

// Position returns the current playback position in seconds.
func (p *Pipeline) Position() float64 {
	return p.clk.Seconds()
}

// Finished reports clean pipeline completion: the decode loop has
// consumed all input and both queues have drained. The host reacts by
// calling Stop.
func (p *Pipeline) Finished() bool {
	return p.inputDone.Load() &&
		p.videoQueue.Len() == 0 &&
		p.audioQueue.Len() == 0
}

// Stop shuts the pipeline down: it cancels the decode goroutine,
// closes both queues so any blocked push or pop wakes, joins the
// goroutine, releases every remaining frame, and closes the
// collaborators. Stop returns the decode loop's terminal error, if
// any. Stopping an already stopped pipeline is a no-op.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		p.mu.Unlock()
		return nil
	case StateDraining:
		p.mu.Unlock()
		return fmt.Errorf("%w: stop already in progress", ErrInvalidState)
	case StateIdle:
		p.state = StateStopped
		p.mu.Unlock()
		p.closeCollaborators()
		return nil
	}
	p.state = StateDraining
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Pipeline stopping")

	// Close queues before joining: a producer blocked on a full queue
	// cannot observe cancellation any other way.
	p.cancel()
	p.videoQueue.Close()
	p.audioQueue.Close()

	err := p.group.Wait()

	p.drainQueues()
	p.closeCollaborators()
	p.verifyPoolAccounting()

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"function": "Stop",
		"stats":    fmt.Sprintf("%+v", p.Stats()),
	}).Info("Pipeline stopped")

	return err
}

// drainQueues releases every frame still enqueued after shutdown.
func (p *Pipeline) drainQueues() {
	for {
		frame, err := p.videoQueue.Pop()
		if err != nil {
			break
		}
		p.releaseFrame(frame)
	}
	for {
		frame, err := p.audioQueue.Pop()
		if err != nil {
			break
		}
		p.releaseFrame(frame)
	}
}

func (p *Pipeline) closeCollaborators() {
	if err := p.cfg.Demuxer.Close(); err != nil {
		p.log.WithError(err).Warn("Demuxer close failed")
	}
	if p.cfg.VideoDecoder != nil {
		if err := p.cfg.VideoDecoder.Close(); err != nil {
			p.log.WithError(err).Warn("Video decoder close failed")
		}
	}
	if p.cfg.AudioDecoder != nil {
		if err := p.cfg.AudioDecoder.Close(); err != nil {
			p.log.WithError(err).Warn("Audio decoder close failed")
		}
	}
}

// verifyPoolAccounting checks the no-leak invariant after shutdown:
// every slot must be back in its pool.
func (p *Pipeline) verifyPoolAccounting() {
	if p.videoPool != nil && p.videoPool.Outstanding() != 0 {
		p.log.WithFields(logrus.Fields{
			"function":    "verifyPoolAccounting",
			"outstanding": p.videoPool.Outstanding(),
		}).Error("Video pool slots leaked at shutdown")
	}
	if p.audioPool != nil && p.audioPool.Outstanding() != 0 {
		p.log.WithFields(logrus.Fields{
			"function":    "verifyPoolAccounting",
			"outstanding": p.audioPool.Outstanding(),
		}).Error("Audio pool slots leaked at shutdown")
	}
}

func (p *Pipeline) setTermErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.termErr == nil {
		p.termErr = err
	}
}
