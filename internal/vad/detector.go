package vad

import "sync"

// Detector classifies one fixed-size audio chunk as speech or non-speech.
// Implementations must tolerate being called once per capture chunk from
// the real-time capture context.
type Detector interface {
	// IsSpeech returns the speech verdict and a confidence in [0, 1].
	IsSpeech(chunk []float32) (bool, float32, error)
}

// Cascade chains a coarse detector and a confirming detector. The coarse
// stage is always consulted; the confirm stage runs only when the coarse
// stage accepts, and its verdict is authoritative. A coarse-stage error
// degrades to an accept so a broken pre-filter cannot silence the system.
type Cascade struct {
	coarse  Detector
	confirm Detector

	totalChecks    uint64
	confirmChecks  uint64
	speechDetected uint64

	mu sync.RWMutex
}

// CascadeStats reports cascade efficiency counters. SkipRatio is the
// fraction of chunks the confirm stage never saw.
type CascadeStats struct {
	TotalChecks    uint64  `json:"total_checks"`
	ConfirmChecks  uint64  `json:"confirm_checks"`
	SpeechDetected uint64  `json:"speech_detected"`
	SkipRatio      float64 `json:"skip_ratio"`
}

// NewCascade creates a two-stage cascade from a coarse and a confirming detector.
func NewCascade(coarse, confirm Detector) *Cascade {
	return &Cascade{
		coarse:  coarse,
		confirm: confirm,
	}
}

// IsSpeech classifies a chunk through both stages.
func (c *Cascade) IsSpeech(chunk []float32) (bool, float32, error) {
	c.mu.Lock()
	c.totalChecks++
	c.mu.Unlock()

	coarseSpeech, _, err := c.coarse.IsSpeech(chunk)
	if err != nil {
		// Degraded coarse stage: let the confirm stage decide.
		coarseSpeech = true
	}

	if !coarseSpeech {
		return false, 0, nil
	}

	c.mu.Lock()
	c.confirmChecks++
	c.mu.Unlock()

	speech, confidence, err := c.confirm.IsSpeech(chunk)
	if err != nil {
		return false, 0, err
	}

	if speech {
		c.mu.Lock()
		c.speechDetected++
		c.mu.Unlock()
	}

	return speech, confidence, nil
}

// Stats returns current cascade counters.
func (c *Cascade) Stats() CascadeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	skipRatio := float64(0)
	if c.totalChecks > 0 {
		skipRatio = 1 - float64(c.confirmChecks)/float64(c.totalChecks)
	}

	return CascadeStats{
		TotalChecks:    c.totalChecks,
		ConfirmChecks:  c.confirmChecks,
		SpeechDetected: c.speechDetected,
		SkipRatio:      skipRatio,
	}
}

// Reset clears the cascade counters.
func (c *Cascade) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalChecks = 0
	c.confirmChecks = 0
	c.speechDetected = 0
}
