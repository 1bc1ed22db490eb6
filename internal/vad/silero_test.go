package vad

import "testing"

func TestSileroWindowSamples(t *testing.T) {
	if got := sileroWindowSamples(16000); got != 512 {
		t.Errorf("expected 512 samples at 16kHz, got %d", got)
	}
	if got := sileroWindowSamples(8000); got != 256 {
		t.Errorf("expected 256 samples at 8kHz, got %d", got)
	}
}

// rampChunk returns n samples with increasing values starting at base, so
// sample identity survives windowing.
func rampChunk(base, n int) []float32 {
	chunk := make([]float32, n)
	for i := range chunk {
		chunk[i] = float32(base + i)
	}
	return chunk
}

func TestWindowFramesCarriesRemainder(t *testing.T) {
	// A 1600-sample chunk yields three full 512-sample windows and leaves
	// 64 samples for the next call.
	frames, rest := windowFrames(nil, rampChunk(0, 1600), 512)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for _, frame := range frames {
		if len(frame) != 512 {
			t.Fatalf("expected 512-sample frames, got %d", len(frame))
		}
	}
	if len(rest) != 64 {
		t.Fatalf("expected 64 carried samples, got %d", len(rest))
	}

	// The next chunk is prepended with the remainder: 64+1600 samples give
	// three more windows and a 128-sample remainder. The first window must
	// start with the carried samples, not silence.
	frames, rest = windowFrames(rest, rampChunk(1600, 1600), 512)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames on second call, got %d", len(frames))
	}
	if len(rest) != 128 {
		t.Fatalf("expected 128 carried samples, got %d", len(rest))
	}
	if frames[0][0] != 1536 {
		t.Errorf("first window must begin with carried sample 1536, got %f", frames[0][0])
	}
	if frames[0][64] != 1600 {
		t.Errorf("carried samples must precede the new chunk, got %f at index 64", frames[0][64])
	}

	// Stream continuity: across both calls every sample is consumed exactly
	// once and in order.
	if last := frames[2][511]; last != 1536+512*3-1 {
		t.Errorf("unexpected last windowed sample %f", last)
	}
}

func TestWindowFramesShortChunk(t *testing.T) {
	frames, rest := windowFrames(nil, rampChunk(0, 100), 512)
	if len(frames) != 0 {
		t.Errorf("expected no frames for a short chunk, got %d", len(frames))
	}
	if len(rest) != 100 {
		t.Errorf("expected all 100 samples carried, got %d", len(rest))
	}

	frames, rest = windowFrames(rest, rampChunk(100, 412), 512)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame once enough samples accumulate, got %d", len(frames))
	}
	if len(rest) != 0 {
		t.Errorf("expected empty remainder, got %d samples", len(rest))
	}
	if frames[0][0] != 0 || frames[0][511] != 511 {
		t.Errorf("window boundaries wrong: first=%f last=%f", frames[0][0], frames[0][511])
	}
}
