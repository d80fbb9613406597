package audio

import "encoding/base64"

// FloatToInt16 converts normalized float samples to signed 16-bit PCM.
// Samples are clamped to [-1, 1]. Scaling is asymmetric on purpose:
// negative values scale by 0x8000 and positive by 0x7FFF, matching the
// asymmetric range of two's-complement PCM16.
func FloatToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// Int16ToFloat normalizes PCM16 samples back to [-1, 1] using the same
// asymmetric scale as FloatToInt16.
func Int16ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		if s < 0 {
			out[i] = float64(s) / 0x8000
		} else {
			out[i] = float64(s) / 0x7FFF
		}
	}
	return out
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
// An odd trailing byte is dropped.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// DecodePCM16 turns raw PCM16 bytes into a playable Chunk, de-interleaving
// and retaining the declared rate and channel count. Malformed input is
// handled best-effort: an odd trailing byte is truncated, never an error.
func DecodePCM16(data []byte, sampleRate, channels int) Chunk {
	return Chunk{
		Samples:    BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// EncodeBase64 encodes PCM bytes for providers that frame audio as
// text-safe payloads.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a text-framed audio payload. On malformed input it
// returns nil so playback continues from the next valid chunk.
func DecodeBase64(s string) []byte {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return data
}
