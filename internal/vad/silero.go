package vad

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"
)

// sileroWindowSamples returns the frame size the Silero model expects:
// 512 samples at 16 kHz, 256 at 8 kHz.
func sileroWindowSamples(sampleRate int) int {
	if sampleRate == 8000 {
		return 256
	}
	return 512
}

// SileroDetector is the confirming cascade stage, backed by the Silero
// VAD ONNX model. The streaming detector reports speech start/end events;
// the wrapper tracks the in-speech interval between them so each chunk
// gets a verdict.
type SileroDetector struct {
	detector   *speech.Detector
	windowSize int
	threshold  float32

	inSpeech bool
	pending  []float32
	mu       sync.Mutex
}

// SileroConfig configures the Silero detector.
type SileroConfig struct {
	ModelPath  string
	SampleRate int
	Threshold  float32
}

// NewSileroDetector loads the Silero ONNX model from the configured path.
func NewSileroDetector(cfg SileroConfig) (*SileroDetector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path cannot be empty")
	}

	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", cfg.Threshold)
	}

	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  cfg.ModelPath,
		SampleRate: cfg.SampleRate,
		Threshold:  cfg.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create silero detector: %w", err)
	}

	return &SileroDetector{
		detector:   detector,
		windowSize: sileroWindowSamples(cfg.SampleRate),
		threshold:  cfg.Threshold,
	}, nil
}

// windowFrames splits carried-over samples plus a new chunk into complete
// model windows and the remainder to carry into the next call. The
// remainder is copied so callers may reuse the chunk buffer.
func windowFrames(pending, chunk []float32, size int) ([][]float32, []float32) {
	buf := make([]float32, 0, len(pending)+len(chunk))
	buf = append(buf, pending...)
	buf = append(buf, chunk...)

	var frames [][]float32
	offset := 0
	for offset+size <= len(buf) {
		frames = append(frames, buf[offset:offset+size])
		offset += size
	}

	rest := make([]float32, len(buf)-offset)
	copy(rest, buf[offset:])
	return frames, rest
}

// IsSpeech runs the chunk through the streaming Silero model window by
// window. A trailing partial window is carried over and prepended to the
// next chunk so the model only ever sees real samples. The verdict is the
// in-speech state after the last complete window.
func (d *SileroDetector) IsSpeech(chunk []float32) (bool, float32, error) {
	if len(chunk) == 0 {
		return false, 0, fmt.Errorf("empty audio chunk")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	frames, rest := windowFrames(d.pending, chunk, d.windowSize)
	for _, window := range frames {
		event, err := d.detector.DetectStreamFrame(window)
		if err != nil {
			// The streaming detector can desynchronize on abrupt input;
			// reset and report non-speech rather than poisoning the stream.
			d.detector.Reset()
			d.inSpeech = false
			d.pending = nil
			return false, 0, fmt.Errorf("silero stream frame failed: %w", err)
		}

		if event != nil {
			if event.IsStart {
				d.inSpeech = true
			}
			if event.IsEnd {
				d.inSpeech = false
			}
		}
	}
	d.pending = rest

	confidence := float32(0)
	if d.inSpeech {
		confidence = 1
	}

	return d.inSpeech, confidence, nil
}

// Close releases the ONNX session resources.
func (d *SileroDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.detector.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy silero detector: %w", err)
	}
	return nil
}
