package audio

import "testing"

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Errorf("expected %d samples, got %d", len(samples), len(result))
	}
	for i, s := range samples {
		if result[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 48kHz -> 24kHz (2:1 ratio)
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i)
	}

	result := Resample(samples, 48000, 24000)

	if len(result) != 480 {
		t.Errorf("expected 480 samples, got %d", len(result))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 16kHz -> 24kHz (2:3 ratio)
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = int16(i * 100)
	}

	result := Resample(samples, 16000, 24000)

	if len(result) != 480 {
		t.Errorf("expected 480 samples, got %d", len(result))
	}
}

func TestResample_RoundTrip(t *testing.T) {
	// Upsampling then downsampling should approximate identity
	// within linear interpolation error.
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	up := Resample(samples, 16000, 24000)
	back := Resample(up, 24000, 16000)

	if len(back) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(back))
	}

	// Skip the ramp discontinuity points; interpolation smears them.
	for i := 1; i < len(back)-1; i++ {
		if samples[i]%1000 < 10 || samples[i]%1000 > 990 {
			continue
		}
		diff := int(back[i]) - int(samples[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > 4 {
			t.Errorf("sample %d: round trip error %d too large", i, diff)
		}
	}
}

func TestResample_Empty(t *testing.T) {
	if result := Resample(nil, 24000, 48000); len(result) != 0 {
		t.Error("expected empty result for nil input")
	}
	if result := Resample([]int16{}, 24000, 48000); len(result) != 0 {
		t.Error("expected empty result for empty input")
	}
}

func TestResampleBytes(t *testing.T) {
	data := SamplesToBytes(make([]int16, 480))
	result := ResampleBytes(data, 24000, 48000)

	if len(result) != 480*2*2 {
		t.Errorf("expected %d bytes, got %d", 480*2*2, len(result))
	}
}
