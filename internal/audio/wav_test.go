package audio

import (
	"testing"
	"time"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	clip := &Clip{
		ID:         "test",
		StartTime:  time.Now(),
		Samples:    []float32{0, 0.5, -0.5, 1.0, -1.0},
		SampleRate: 16000,
	}

	data, err := EncodeWAV(clip)
	if err != nil {
		t.Fatalf("EncodeWAV returned error: %v", err)
	}

	if len(data) != 44+len(clip.Samples)*2 {
		t.Errorf("expected %d bytes, got %d", 44+len(clip.Samples)*2, len(data))
	}

	samples, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}

	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}

	if len(samples) != len(clip.Samples) {
		t.Fatalf("expected %d samples, got %d", len(clip.Samples), len(samples))
	}

	if samples[0] != 0 || samples[3] != 32767 || samples[4] != -32767 {
		t.Errorf("unexpected decoded values: %v", samples)
	}
}

func TestEncodeWAVRejectsEmpty(t *testing.T) {
	tests := []struct {
		name string
		clip *Clip
	}{
		{"nil clip", nil},
		{"no samples", &Clip{SampleRate: 16000}},
		{"zero sample rate", &Clip{Samples: []float32{0.1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeWAV(tt.clip); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFloat32ToPCM16Clipping(t *testing.T) {
	out := Float32ToPCM16([]float32{2.0, -2.0, 0.25})

	if out[0] != 32767 {
		t.Errorf("expected positive clip to 32767, got %d", out[0])
	}
	if out[1] != -32767 {
		t.Errorf("expected negative clip to -32767, got %d", out[1])
	}
	// 0.25 * 32767 = 8191.75, truncated by the int16 conversion.
	if out[2] != 8191 {
		t.Errorf("unexpected midrange value: %d", out[2])
	}
}

func TestDecodeWAVRejectsMalformed(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Error("expected error for truncated data")
	}

	clip := &Clip{Samples: []float32{0.1, 0.2}, SampleRate: 16000}
	data, err := EncodeWAV(clip)
	if err != nil {
		t.Fatalf("EncodeWAV returned error: %v", err)
	}

	data[0] = 'X' // corrupt RIFF magic
	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("expected error for corrupted header")
	}
}
