// Package playback implements the concurrency and resource-management
// core of a media playback pipeline: bounded buffer pools for decode
// storage, bounded frame queues between the decode producer and the
// presentation consumer, and a pausable, speed-adjustable clock that
// gates frame delivery.
//
// Container demuxing, codec decoding, format conversion, and frame
// presentation are external collaborators supplied through the Demuxer,
// VideoDecoder/AudioDecoder, VideoConverter/AudioConverter, and
// VideoSink/AudioSink interfaces. The subpackages under source/ and
// sink/ provide reference implementations built on pure Go media
// libraries.
//
// A Pipeline runs exactly two logical threads of execution: one decode
// goroutine it owns, and the host's tick loop calling Tick. The decode
// goroutine reads packets, decodes them into pool-acquired buffers, and
// pushes timestamped frames into per-track queues, blocking when a
// queue is full so a slow consumer throttles decoding. Each Tick reads
// the playback clock and delivers due audio frames, and due video
// frames per the configured DeliveryPolicy, to the sinks.
//
// Basic usage:
//
//	p, err := playback.New(playback.Config{
//		Demuxer:      dmx,
//		AudioDecoder: dec,
//		AudioSink:    spk,
//	})
//	if err != nil {
//		return err
//	}
//	if err := p.Start(); err != nil {
//		return err
//	}
//	for !p.Finished() {
//		p.Tick()
//		// host render/event loop work
//	}
//	p.Stop()
package playback
