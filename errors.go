package playback

import "errors"

// Sentinel errors for pipeline operations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrSetupFailed indicates stream discovery or collaborator
	// initialization failed. Setup failures are fatal: the pipeline is
	// never started and partially acquired resources are rolled back.
	ErrSetupFailed = errors.New("stream setup failed")

	// ErrDecodeFailed indicates the external decoder or converter
	// reported an unrecoverable error, or per-frame failures recurred
	// past the configured escalation threshold.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrInvalidState indicates an operation that is not legal in the
	// pipeline's current state, such as starting a stopped pipeline.
	ErrInvalidState = errors.New("invalid pipeline state")

	// ErrNilDemuxer indicates a configuration without a packet source.
	ErrNilDemuxer = errors.New("demuxer cannot be nil")

	// ErrNoDecoder indicates the stream carries a track for which no
	// decoder was configured.
	ErrNoDecoder = errors.New("no decoder configured for stream track")
)
