package audio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or a sine wave) on a steady block
// cadence, mimicking a real capture device.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Chunk
	stopCh   chan struct{}

	chunksRead atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan Chunk, 10),
		stopCh:    make(chan struct{}),
		frequency: 0, // Silence by default
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan Chunk, 10)

	go m.generateLoop(ctx, m.stopCh, m.streamCh)

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

// generateLoop owns streamCh: it is the only sender and closes it on exit,
// which terminates consumers ranging over Stream().
func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}, streamCh chan Chunk) {
	defer close(streamCh)

	interval := time.Duration(m.cfg.BlockSize) * time.Second / time.Duration(m.cfg.SampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			chunk := m.generateChunk()
			select {
			case streamCh <- chunk:
				m.chunksRead.Add(1)
			default:
				m.logger.Debug("mock source: buffer full, dropping chunk")
			}
		}
	}
}

func (m *MockSource) generateChunk() Chunk {
	samples := make([]int16, m.cfg.BlockSize*m.cfg.Channels)

	if m.frequency > 0 {
		step := 2 * math.Pi * m.frequency / float64(m.cfg.SampleRate)
		for i := range samples {
			samples[i] = int16(m.amplitude * 0x7FFF * math.Sin(m.phase))
			m.phase += step
		}
	}

	return Chunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Stop halts audio generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stopCh)
	return nil
}

// Stream returns the channel of generated chunks.
func (m *MockSource) Stream() <-chan Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the source configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// ChunksRead returns the number of chunks generated so far.
func (m *MockSource) ChunksRead() int64 { return m.chunksRead.Load() }

// Close releases the source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	closed := m.closed
	m.closed = true
	m.mu.Unlock()

	if closed {
		return nil
	}
	return m.Stop()
}

// MockSink is a mock audio sink for testing.
// It records every chunk written to it.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []Chunk
	cleared int
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start begins accepting audio.
func (s *MockSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// Stop halts playback.
func (s *MockSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Write records a chunk.
func (s *MockSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.written = append(s.written, chunk)
	return nil
}

// Clear discards buffered audio and counts the interruption.
func (s *MockSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return nil
}

// Written returns a copy of all chunks written so far.
func (s *MockSink) Written() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chunk, len(s.written))
	copy(out, s.written)
	return out
}

// ClearCount returns how many times Clear was called.
func (s *MockSink) ClearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

// Config returns the sink configuration.
func (s *MockSink) Config() Config { return s.cfg }

// Name returns "mock".
func (s *MockSink) Name() string { return "mock" }

// Close releases the sink.
func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running = false
	return nil
}
