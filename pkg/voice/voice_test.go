package voice

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStateTransitionTable(t *testing.T) {
	tests := []struct {
		from, to ConnectionState
		want     bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateDisconnected, StateConnected, false},
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateError, true},
		{StateConnected, StateDisconnected, true},
		{StateConnected, StateConnecting, false},
		{StateError, StateConnecting, true},
		{StateError, StateConnected, false},
		{StateConnected, StateError, true},
		{StateDisconnected, StateError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStateIdle(t *testing.T) {
	if !StateDisconnected.Idle() {
		t.Error("disconnected should be idle")
	}
	if !StateError.Idle() {
		t.Error("error should be idle")
	}
	if StateConnecting.Idle() || StateConnected.Idle() {
		t.Error("connecting/connected should not be idle")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid gemini config",
			config:  DefaultGeminiConfig().withKey("test-key"),
			wantErr: false,
		},
		{
			name:    "missing api key",
			config:  DefaultGrokConfig(),
			wantErr: true,
		},
		{
			name:    "unknown provider",
			config:  DefaultConfig().WithProvider("deepmind").withKey("k"),
			wantErr: true,
		},
		{
			name: "vad threshold too high",
			config: func() Config {
				c := DefaultOpenAIConfig().withKey("k")
				c.VADThreshold = 1.5
				return c
			}(),
			wantErr: true,
		},
		{
			name: "zero sample rate",
			config: func() Config {
				c := DefaultGeminiConfig().withKey("k")
				c.InputSampleRate = 0
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func (c Config) withKey(k string) Config {
	c.APIKey = k
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.InputSampleRate != 16000 {
		t.Errorf("expected input sample rate 16000, got %d", cfg.InputSampleRate)
	}
	if cfg.OutputSampleRate != 24000 {
		t.Errorf("expected output sample rate 24000, got %d", cfg.OutputSampleRate)
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected 10s handshake timeout, got %v", cfg.HandshakeTimeout)
	}
	if cfg.VADThreshold != 0.5 {
		t.Errorf("expected VAD threshold 0.5, got %f", cfg.VADThreshold)
	}
}

func TestCallTool_HandlerError(t *testing.T) {
	cb := Callbacks{
		OnToolCall: func(call FunctionCall) (any, error) {
			return nil, errors.New("database offline")
		},
	}

	result := cb.CallTool(FunctionCall{Name: "get_company_metrics"})

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	if m["error"] != "database offline" {
		t.Errorf("expected error payload, got %v", m)
	}
}

func TestCallTool_HandlerPanic(t *testing.T) {
	cb := Callbacks{
		OnToolCall: func(call FunctionCall) (any, error) {
			panic("boom")
		},
	}

	result := cb.CallTool(FunctionCall{Name: "get_segment_details"})

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	if m["error"] == nil {
		t.Error("expected error payload for panicking handler")
	}
}

func TestCallTool_NoHandler(t *testing.T) {
	cb := Callbacks{}

	result := cb.CallTool(FunctionCall{Name: "anything"})

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	if m["error"] == nil {
		t.Error("expected error payload when no handler registered")
	}
}

func TestCallTool_NilResult(t *testing.T) {
	cb := Callbacks{
		OnToolCall: func(call FunctionCall) (any, error) {
			return nil, nil
		},
	}

	// nil results become an empty object so a response is always sent.
	if result := cb.CallTool(FunctionCall{Name: "search_insights"}); result == nil {
		t.Error("expected non-nil result for nil handler return")
	}
}

type stubAdapter struct {
	provider Provider
}

func (s *stubAdapter) Provider() Provider  { return s.provider }
func (s *stubAdapter) ActiveModel() string { return "stub-model" }
func (s *stubAdapter) Disconnect() error   { return nil }

func (s *stubAdapter) Connect(ctx context.Context, cb Callbacks) error { return nil }

func TestRegistry(t *testing.T) {
	const testProvider Provider = "gemini"
	Register(testProvider, func(cfg Config) (Adapter, error) {
		return &stubAdapter{provider: testProvider}, nil
	})

	a, err := New(testProvider, DefaultConfig().withKey("k"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Provider() != testProvider {
		t.Errorf("expected provider %s, got %s", testProvider, a.Provider())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := DefaultConfig().withKey("k")
	cfg.Provider = ProviderGrok // valid id so Validate passes

	// No factory registered in this test binary for grok.
	_, err := New(ProviderGrok, cfg)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()

	mc.MarkSpeechEnd()
	time.Sleep(5 * time.Millisecond)
	mc.MarkTranscript()
	mc.MarkFirstText()
	mc.MarkFirstAudio()
	time.Sleep(5 * time.Millisecond)
	mc.MarkResponseDone()

	m := mc.Current()
	if m.TranscriptLatency <= 0 {
		t.Errorf("expected positive transcript latency, got %v", m.TranscriptLatency)
	}
	if m.TotalLatency <= 0 {
		t.Errorf("expected positive total latency, got %v", m.TotalLatency)
	}
	if m.TotalLatency < m.TranscriptLatency {
		t.Error("total latency should not be less than transcript latency")
	}

	avg := mc.Average()
	if avg.TotalLatency <= 0 {
		t.Error("expected archived turn in average")
	}
}

func TestMetricsFormatLatency(t *testing.T) {
	m := Metrics{
		TranscriptLatency: 120 * time.Millisecond,
		TotalLatency:      500 * time.Millisecond,
	}
	if m.FormatLatency() == "" {
		t.Error("FormatLatency returned empty string")
	}
}
