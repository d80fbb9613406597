package audio

import "fmt"

// Backend represents the audio device backend type.
type Backend string

const (
	// BackendFFmpeg captures/plays through an ffmpeg subprocess.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendMock uses an in-process implementation for testing.
	BackendMock Backend = "mock"
)

// DefaultBlockSize is the number of samples captured per block.
// Providers receive exactly one uplink message per block.
const DefaultBlockSize = 4096

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which device backend to use.
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Capture defaults to 16000, playback to 24000.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int `json:"channels"`

	// BlockSize is the number of samples per captured block.
	// Default: 4096.
	BlockSize int `json:"block_size"`

	// Device is the platform-specific device identifier
	// (e.g. "default" for pulse, empty for system default).
	Device string `json:"device"`
}

// DefaultCaptureConfig returns the capture-side defaults.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:    BackendMock,
		SampleRate: 16000,
		Channels:   1,
		BlockSize:  DefaultBlockSize,
		Device:     "",
	}
}

// DefaultPlaybackConfig returns the playback-side defaults.
func DefaultPlaybackConfig() Config {
	cfg := DefaultCaptureConfig()
	cfg.SampleRate = 24000
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	return nil
}

// BlockBytes returns the size of one block in bytes.
func (c *Config) BlockBytes() int {
	return c.BlockSize * c.Channels * 2
}
