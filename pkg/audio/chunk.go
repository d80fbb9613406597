package audio

import "time"

// Chunk represents a block of PCM16 audio.
type Chunk struct {
	// Samples contains PCM16 audio samples (little-endian, interleaved).
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Bytes returns the raw little-endian bytes of the chunk.
func (c *Chunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Floats returns the samples normalized to [-1, 1].
func (c *Chunk) Floats() []float64 {
	return Int16ToFloat(c.Samples)
}

// Duration returns the playback duration of this chunk.
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}
