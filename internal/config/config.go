// Package config provides configuration helpers for voiceagent commands.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Defaults for command-line tools.
const (
	DefaultWebPort  = "8090"
	DefaultProvider = "gemini"
	DefaultLogLevel = "info"
)

// Load reads a .env file if present. Missing files are not an error;
// real environment variables always win over file contents.
func Load() {
	_ = godotenv.Load()
}

// Env returns the value of an environment variable or a fallback.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GeminiAPIKey returns the Gemini API key from GEMINI_API_KEY.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// GrokAPIKey returns the xAI API key from XAI_API_KEY.
func GrokAPIKey() string {
	return os.Getenv("XAI_API_KEY")
}

// OpenAIAPIKey returns the OpenAI API key from OPENAI_API_KEY.
func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// WebPort returns the dashboard port from WEB_PORT or the default.
func WebPort() string {
	return Env("WEB_PORT", DefaultWebPort)
}

// Provider returns the voice provider id from VOICE_PROVIDER or the default.
func Provider() string {
	return Env("VOICE_PROVIDER", DefaultProvider)
}

// LogLevel returns the log level from LOG_LEVEL or the default.
func LogLevel() string {
	return Env("LOG_LEVEL", DefaultLogLevel)
}
