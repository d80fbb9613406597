package audio

import (
	"context"
	"io"
)

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// After calling Start, audio chunks are available via Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns a channel that receives captured blocks.
	// The channel is closed when the source is stopped.
	Stream() <-chan Chunk

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g. "ffmpeg", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}
