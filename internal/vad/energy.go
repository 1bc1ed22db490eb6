package vad

import (
	"fmt"
	"math"
)

// EnergyDetector is the coarse cascade stage: a stateless RMS-energy
// threshold over normalized float32 samples. It costs a few microseconds
// per chunk, which keeps the expensive confirm stage off the hot path for
// obvious silence.
type EnergyDetector struct {
	threshold float32
}

// NewEnergyDetector creates an energy detector with the given RMS threshold.
func NewEnergyDetector(threshold float32) (*EnergyDetector, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	return &EnergyDetector{threshold: threshold}, nil
}

// IsSpeech reports whether the chunk's RMS energy crosses the threshold.
// The returned confidence is the clamped RMS value itself.
func (d *EnergyDetector) IsSpeech(chunk []float32) (bool, float32, error) {
	if len(chunk) == 0 {
		return false, 0, fmt.Errorf("empty audio chunk")
	}

	var energy float64
	for _, sample := range chunk {
		energy += float64(sample) * float64(sample)
	}
	rms := float32(math.Sqrt(energy / float64(len(chunk))))

	if rms > 1 {
		rms = 1
	}

	return rms >= d.threshold, rms, nil
}

// Threshold returns the configured RMS threshold.
func (d *EnergyDetector) Threshold() float32 {
	return d.threshold
}
