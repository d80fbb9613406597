package voice

import (
	"errors"
	"time"

	"github.com/marketscope/voiceagent/pkg/audio"
)

// Provider identifies the speech-to-speech backend.
type Provider string

const (
	// ProviderGemini uses Google's Gemini Live API.
	ProviderGemini Provider = "gemini"

	// ProviderGrok uses xAI's Grok Realtime API.
	ProviderGrok Provider = "grok"

	// ProviderOpenAI uses OpenAI's Realtime API.
	ProviderOpenAI Provider = "openai"
)

// Config holds all tunable parameters for a voice-agent session.
// It is immutable per connection attempt.
type Config struct {
	// Provider selection
	Provider Provider

	// APIKey is the provider credential.
	APIKey string

	// SystemPrompt is the persona text sent during session negotiation.
	SystemPrompt string

	// Model optionally overrides the provider default model.
	Model string

	// Voice optionally selects a synthesis voice.
	Voice string

	// Tools the AI can invoke, in canonical form.
	Tools []ToolDeclaration

	// Audio settings. Providers expect 16kHz mono in, 24kHz mono out
	// by convention; overridable per session.
	InputSampleRate  int
	OutputSampleRate int

	// VAD (turn detection) settings
	VADThreshold       float64       // Activation threshold 0.0-1.0 (default: 0.5)
	VADPrefixPadding   time.Duration // Audio to include before speech start (default: 300ms)
	VADSilenceDuration time.Duration // Silence to detect end of speech (default: 500ms)

	// HandshakeTimeout bounds how long Connect waits for the backend's
	// session-ready acknowledgment (default: 10s).
	HandshakeTimeout time.Duration

	// Greeting is an optional prompt sent once after session negotiation
	// succeeds. Only some providers act on it.
	Greeting string

	// Source and Sink are the capture and playback devices. When nil the
	// adapter creates defaults from the audio package factory.
	Source audio.Source
	Sink   audio.Sink

	// Debug enables verbose protocol logging.
	Debug bool
}

// DefaultConfig returns a Config with the conventional audio format and
// turn-detection defaults.
func DefaultConfig() Config {
	return Config{
		InputSampleRate:  16000,
		OutputSampleRate: 24000,

		VADThreshold:       0.5,
		VADPrefixPadding:   300 * time.Millisecond,
		VADSilenceDuration: 500 * time.Millisecond,

		HandshakeTimeout: 10 * time.Second,
	}
}

// DefaultGeminiConfig returns defaults for Gemini Live.
func DefaultGeminiConfig() Config {
	cfg := DefaultConfig()
	cfg.Provider = ProviderGemini
	return cfg
}

// DefaultGrokConfig returns defaults for Grok Realtime.
func DefaultGrokConfig() Config {
	cfg := DefaultConfig()
	cfg.Provider = ProviderGrok
	return cfg
}

// DefaultOpenAIConfig returns defaults for OpenAI Realtime.
func DefaultOpenAIConfig() Config {
	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenAI
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderGrok, ProviderOpenAI:
		if c.APIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return errors.New("voice: unknown provider: " + string(c.Provider))
	}

	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return errors.New("voice: VAD threshold must be between 0 and 1")
	}

	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return errors.New("voice: sample rates must be positive")
	}

	return nil
}

// WithProvider returns a copy with the provider set.
func (c Config) WithProvider(p Provider) Config {
	c.Provider = p
	return c
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// WithModel returns a copy with the model override set.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithTools returns a copy with the tool declarations set.
func (c Config) WithTools(tools []ToolDeclaration) Config {
	c.Tools = tools
	return c
}

// WithVAD returns a copy with VAD settings.
func (c Config) WithVAD(threshold float64, silenceDuration time.Duration) Config {
	c.VADThreshold = threshold
	c.VADSilenceDuration = silenceDuration
	return c
}

// WithDebug returns a copy with debug enabled.
func (c Config) WithDebug(debug bool) Config {
	c.Debug = debug
	return c
}
