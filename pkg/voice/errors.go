package voice

import "errors"

// Common errors returned by adapters and the factory.
var (
	ErrNotConnected     = errors.New("voice: adapter not connected")
	ErrAlreadyConnected = errors.New("voice: adapter already connected")
	ErrMissingAPIKey    = errors.New("voice: missing API key")
	ErrUnknownProvider  = errors.New("voice: unknown provider")
)
