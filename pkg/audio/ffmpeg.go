package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// FFmpegSource captures microphone PCM audio through an ffmpeg subprocess.
// It reads fixed-size s16le blocks from ffmpeg's stdout and delivers them on
// the stream channel.
type FFmpegSource struct {
	cfg     Config
	logger  *slog.Logger
	command string

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Chunk
	cancel   context.CancelFunc
	cmd      *exec.Cmd
}

// NewFFmpegSource creates an ffmpeg-backed capture source.
func NewFFmpegSource(cfg Config, logger *slog.Logger) *FFmpegSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSource{
		cfg:     cfg,
		logger:  logger,
		command: "ffmpeg",
	}
}

// Start launches the capture subprocess.
func (s *FFmpegSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	device := s.cfg.Device
	if device == "" {
		device = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "pulse",
		"-i", device,
		"-ac", strconv.Itoa(s.cfg.Channels),
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("audio: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("audio: start ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.running = true
	s.streamCh = make(chan Chunk, 10)

	go s.readLoop(stdout, &stderr)

	s.logger.Info("ffmpeg capture started",
		"device", device,
		"sample_rate", s.cfg.SampleRate,
		"block_size", s.cfg.BlockSize,
	)

	return nil
}

func (s *FFmpegSource) readLoop(stdout io.ReadCloser, stderr *bytes.Buffer) {
	defer stdout.Close()

	blockBytes := s.cfg.BlockBytes()
	buf := make([]byte, blockBytes)

	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			s.mu.Lock()
			running := s.running
			if running {
				s.running = false
				close(s.streamCh)
			}
			s.mu.Unlock()

			if running && err != io.EOF {
				s.logger.Warn("ffmpeg capture ended",
					"err", err,
					"stderr", stderr.String(),
				)
			}
			return
		}

		chunk := DecodePCM16(buf, s.cfg.SampleRate, s.cfg.Channels)

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		select {
		case s.streamCh <- chunk:
		default:
			s.logger.Debug("ffmpeg source: buffer full, dropping block")
		}
		s.mu.Unlock()
	}
}

// Stop terminates the capture subprocess.
func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.streamCh)

	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil {
		_ = s.cmd.Wait()
		s.cmd = nil
	}
	return nil
}

// Stream returns the channel of captured blocks.
func (s *FFmpegSource) Stream() <-chan Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the source configuration.
func (s *FFmpegSource) Config() Config { return s.cfg }

// Name returns "ffmpeg".
func (s *FFmpegSource) Name() string { return "ffmpeg" }

// Close releases the source.
func (s *FFmpegSource) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// FFmpegSink plays PCM audio through an ffplay subprocess.
type FFmpegSink struct {
	cfg     Config
	logger  *slog.Logger
	command string

	mu      sync.Mutex
	running bool
	closed  bool
	stdin   io.WriteCloser
	cancel  context.CancelFunc
	cmd     *exec.Cmd
}

// NewFFmpegSink creates an ffplay-backed playback sink.
func NewFFmpegSink(cfg Config, logger *slog.Logger) *FFmpegSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSink{
		cfg:     cfg,
		logger:  logger,
		command: "ffplay",
	}
}

// Start launches the playback subprocess.
func (s *FFmpegSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-autoexit",
		"-nodisp",
		"-f", "s16le",
		"-ac", strconv.Itoa(s.cfg.Channels),
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-i", "-",
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, s.command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("audio: ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("audio: start ffplay: %w", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.stdin = stdin
	s.running = true

	s.logger.Info("ffplay playback started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)

	return nil
}

// Write streams a chunk to the playback subprocess.
func (s *FFmpegSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.stdin == nil {
		return io.ErrClosedPipe
	}

	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("audio: write to ffplay: %w", err)
	}
	return nil
}

// Clear restarts the subprocess, dropping any buffered audio.
func (s *FFmpegSink) Clear() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		return nil
	}
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(context.Background())
}

// Stop terminates the playback subprocess.
func (s *FFmpegSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil {
		_ = s.cmd.Wait()
		s.cmd = nil
	}
	return nil
}

// Config returns the sink configuration.
func (s *FFmpegSink) Config() Config { return s.cfg }

// Name returns "ffmpeg".
func (s *FFmpegSink) Name() string { return "ffmpeg" }

// Close releases the sink.
func (s *FFmpegSink) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
