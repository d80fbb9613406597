package audio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new audio source with the given configuration.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio: invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"block_size", cfg.BlockSize,
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendFFmpeg:
		return NewFFmpegSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audio: unsupported backend: %s", cfg.Backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio: invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio sink",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendFFmpeg:
		return NewFFmpegSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audio: unsupported backend: %s", cfg.Backend)
	}
}
