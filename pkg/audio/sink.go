package audio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start begins audio playback.
	Start(ctx context.Context) error

	// Stop halts audio playback.
	// It is safe to call Stop multiple times.
	Stop() error

	// Write sends an audio chunk to the output device.
	// This may block if the output buffer is full.
	Write(ctx context.Context, chunk Chunk) error

	// Clear discards all buffered audio immediately.
	// Used to interrupt playback when the user barges in.
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g. "ffmpeg", "mock").
	Name() string

	// Close releases all resources.
	io.Closer
}
