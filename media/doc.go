// Package media defines the frame and packet types exchanged between the
// decode producer and the presentation consumer of a playback pipeline.
//
// A Packet carries compressed or raw elementary-stream bytes together with
// an integer timestamp and the rational time base needed to place it on the
// presentation timeline. Decoding a packet produces a Frame: either a
// *VideoFrame or an *AudioFrame, each stamped with a presentation time in
// seconds and exclusively owning the buffer its payload lives in.
//
// Frames are single-owner values. The decoder constructs a frame around a
// pooled buffer, the queue holds it while it waits for its presentation
// time, and the consumer releases it exactly once after handing it to a
// sink. Release is idempotent-checked: a second call reports
// ErrAlreadyReleased instead of corrupting pool accounting.
package media
