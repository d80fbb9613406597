package voice

import (
	"sync"
	"time"
)

// Metrics tracks latency at each stage of a conversation turn.
// All durations are measured from the moment the user stops speaking.
type Metrics struct {
	SpeechEndTime    time.Time // When the backend detected end of speech
	TranscriptTime   time.Time // When the user transcript completed
	FirstTextTime    time.Time // When the first agent text delta arrived
	FirstAudioTime   time.Time // When the first playback chunk arrived
	ResponseDoneTime time.Time // When the turn fully completed

	TranscriptLatency time.Duration // Time to complete transcription
	FirstTextLatency  time.Duration // Time to first agent text
	FirstAudioLatency time.Duration // Time to first audio chunk
	TotalLatency      time.Duration // Total end-to-end latency

	// Counts for this turn
	AudioChunksIn  int // Uplink blocks sent
	AudioChunksOut int // Downlink chunks received
	Interruptions  int // Barge-ins during this turn
}

// MetricsCollector collects latency metrics during a session.
// It is goroutine-safe and can be used from multiple callbacks.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// MarkSpeechEnd records when the user stopped speaking.
// This is the reference point for all latency measurements.
func (m *MetricsCollector) MarkSpeechEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{}
	m.current.SpeechEndTime = time.Now()
}

// MarkTranscript records when transcription completed.
func (m *MetricsCollector) MarkTranscript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TranscriptLatency = m.current.TranscriptTime.Sub(m.current.SpeechEndTime)
	}
}

// MarkFirstText records when the first agent text delta arrived.
func (m *MetricsCollector) MarkFirstText() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.FirstTextTime.IsZero() {
		m.current.FirstTextTime = time.Now()
		if !m.current.SpeechEndTime.IsZero() {
			m.current.FirstTextLatency = m.current.FirstTextTime.Sub(m.current.SpeechEndTime)
		}
	}
}

// MarkFirstAudio records when the first playback chunk arrived.
func (m *MetricsCollector) MarkFirstAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.FirstAudioTime.IsZero() {
		m.current.FirstAudioTime = time.Now()
		if !m.current.SpeechEndTime.IsZero() {
			m.current.FirstAudioLatency = m.current.FirstAudioTime.Sub(m.current.SpeechEndTime)
		}
	}
}

// MarkResponseDone records when the turn fully completed and archives it.
func (m *MetricsCollector) MarkResponseDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ResponseDoneTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TotalLatency = m.current.ResponseDoneTime.Sub(m.current.SpeechEndTime)
	}
	m.history = append(m.history, m.current)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
}

// IncrementAudioIn counts one uplink block.
func (m *MetricsCollector) IncrementAudioIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioChunksIn++
}

// IncrementAudioOut counts one downlink chunk.
func (m *MetricsCollector) IncrementAudioOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioChunksOut++
}

// IncrementInterruptions counts one barge-in.
func (m *MetricsCollector) IncrementInterruptions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Interruptions++
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Average returns average latencies over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.TranscriptLatency += h.TranscriptLatency
		avg.FirstTextLatency += h.FirstTextLatency
		avg.FirstAudioLatency += h.FirstAudioLatency
		avg.TotalLatency += h.TotalLatency
	}

	n := time.Duration(len(m.history))
	avg.TranscriptLatency /= n
	avg.FirstTextLatency /= n
	avg.FirstAudioLatency /= n
	avg.TotalLatency /= n

	return avg
}

// FormatLatency returns a formatted string of current latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.TranscriptLatency) + " ASR | " +
		formatDuration(m.FirstTextLatency) + " TEXT | " +
		formatDuration(m.FirstAudioLatency) + " AUDIO | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
