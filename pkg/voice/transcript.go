package voice

import "time"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// TranscriptEntry is one completed utterance in the conversation history.
// Entries are append-only; ordering is arrival order, which may differ from
// audio order when transcription lags playback.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
