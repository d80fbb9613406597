package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler sequences downlink audio chunks onto a Sink for gapless playback.
//
// Providers deliver audio at irregular, often bursty intervals. Each chunk is
// scheduled to start at max(cursor, now) and the cursor then advances by the
// chunk's duration, so chunks always play back-to-back in arrival order.
// Every pending chunk is tracked in a live set so barge-in can cancel all of
// them at once.
type Scheduler struct {
	sink   Sink
	logger *slog.Logger

	mu     sync.Mutex
	cursor time.Time
	live   map[int64]*time.Timer
	nextID int64
	now    func() time.Time
}

// NewScheduler creates a playback scheduler writing to the given sink.
func NewScheduler(sink Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sink:   sink,
		logger: logger,
		live:   make(map[int64]*time.Timer),
		now:    time.Now,
	}
}

// Schedule queues a chunk for playback at the current cursor position.
// Empty chunks are ignored.
func (s *Scheduler) Schedule(chunk Chunk) {
	if len(chunk.Samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := s.cursor
	if start.Before(now) {
		start = now
	}
	s.cursor = start.Add(chunk.Duration())

	id := s.nextID
	s.nextID++

	delay := start.Sub(now)
	s.live[id] = time.AfterFunc(delay, func() {
		s.play(id, chunk)
	})
}

func (s *Scheduler) play(id int64, chunk Chunk) {
	s.mu.Lock()
	if _, ok := s.live[id]; !ok {
		// Cancelled between timer fire and lock acquisition.
		s.mu.Unlock()
		return
	}
	delete(s.live, id)
	s.mu.Unlock()

	if err := s.sink.Write(context.Background(), chunk); err != nil {
		s.logger.Debug("playback write failed", "err", err)
	}
}

// CancelAll stops and discards every scheduled chunk, clears the sink's
// buffer, and resets the playback cursor to now. After it returns the live
// set is empty.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for id, timer := range s.live {
		timer.Stop()
		delete(s.live, id)
	}
	s.cursor = s.now()
	s.mu.Unlock()

	if err := s.sink.Clear(); err != nil {
		s.logger.Debug("sink clear failed", "err", err)
	}
}

// ActiveCount returns the number of chunks currently scheduled or playing.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Cursor returns the time at which the next scheduled chunk would start.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
