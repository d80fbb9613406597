package audio

import (
	"context"
	"testing"
	"time"
)

func TestMockSource_Stream(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.BlockSize = 160 // 10ms blocks to keep the test fast

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	select {
	case chunk := <-src.Stream():
		if len(chunk.Samples) != cfg.BlockSize {
			t.Errorf("expected %d samples per block, got %d", cfg.BlockSize, len(chunk.Samples))
		}
		if chunk.SampleRate != cfg.SampleRate {
			t.Errorf("expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
		}
		// Sine wave should not be all zeros.
		var nonzero bool
		for _, s := range chunk.Samples {
			if s != 0 {
				nonzero = true
				break
			}
		}
		if !nonzero {
			t.Error("expected non-silent samples from sine source")
		}
	case <-time.After(time.Second):
		t.Fatal("no chunk received within 1s")
	}
}

func TestMockSource_StopClosesStream(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.BlockSize = 160

	src := NewMockSource(cfg, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stream := src.Stream()
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Stream must close so capture loops exit.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after Stop")
		}
	}
}

func TestMockSource_DoubleStopIsSafe(t *testing.T) {
	src := NewMockSource(DefaultCaptureConfig(), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("first Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestMockSink_RecordsWrites(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := Chunk{Samples: []int16{1, 2, 3}, SampleRate: 24000, Channels: 1}
	if err := sink.Write(context.Background(), chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	written := sink.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 chunk written, got %d", len(written))
	}
	if written[0].Samples[2] != 3 {
		t.Error("written chunk does not match input")
	}
}

func TestFactory_UnsupportedBackend(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.Backend = "bogus"

	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected error for unsupported source backend")
	}
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("expected error for unsupported sink backend")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero block size", func(c *Config) { c.BlockSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCaptureConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
