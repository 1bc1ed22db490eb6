package audio

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SegmenterState represents the current state of the segmentation machine
type SegmenterState int

const (
	StateIdle SegmenterState = iota
	StateRecording
)

// String returns a human-readable state name
func (s SegmenterState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Clip represents one candidate utterance: the concatenated pre-roll and
// recorded frames between speech onset and the trailing silence threshold.
// A clip is consumed exactly once by the transcription hand-off.
type Clip struct {
	ID         string
	StartTime  time.Time
	Samples    []float32
	SampleRate int
	Duration   time.Duration
}

// SegmenterConfig contains the segmentation thresholds
type SegmenterConfig struct {
	SampleRate           int
	ChunkSize            int
	MinUtteranceDuration time.Duration
	PostSpeechSilence    time.Duration
	PreRollDuration      time.Duration
}

// Segmenter consumes (chunk, isSpeech) pairs and emits complete utterance
// clips. It owns the pre-roll buffer and all recording state; everything
// runs synchronously inside Feed with no I/O, so it is safe to call from
// the capture callback. Not safe for concurrent use.
type Segmenter struct {
	config  SegmenterConfig
	preRoll *PreRollBuffer

	state          SegmenterState
	frames         [][]float32
	silenceChunks  int
	recordedChunks int
	startTime      time.Time

	// thresholds derived from config
	maxSilenceChunks int
	minChunks        int

	// statistics
	clipsEmitted   uint64
	clipsDiscarded uint64
}

// SegmenterStats represents segmenter statistics for monitoring
type SegmenterStats struct {
	State          string `json:"state"`
	ClipsEmitted   uint64 `json:"clips_emitted"`
	ClipsDiscarded uint64 `json:"clips_discarded"`
}

// NewSegmenter creates a segmenter with thresholds derived from config:
// the pre-roll capacity is sampleRate/chunkSize*preRollSeconds (truncated),
// the silence threshold is ceil(postSpeechSilence*sampleRate/chunkSize).
func NewSegmenter(config SegmenterConfig) *Segmenter {
	chunksPerSecond := float64(config.SampleRate) / float64(config.ChunkSize)

	preRollChunks := int(chunksPerSecond * config.PreRollDuration.Seconds())
	maxSilence := int(math.Ceil(config.PostSpeechSilence.Seconds() * chunksPerSecond))
	if maxSilence < 1 {
		maxSilence = 1
	}

	return &Segmenter{
		config:           config,
		preRoll:          NewPreRollBuffer(preRollChunks),
		state:            StateIdle,
		maxSilenceChunks: maxSilence,
		minChunks:        int(math.Ceil(config.MinUtteranceDuration.Seconds() * chunksPerSecond)),
	}
}

// Feed advances the state machine with one classified chunk. It returns a
// finished clip when the trailing silence threshold is reached and the
// recording meets the minimum utterance duration, and nil otherwise.
//
// The chunk is pushed into the pre-roll history after the transition so a
// clip never contains the onset chunk twice.
func (s *Segmenter) Feed(chunk []float32, isSpeech bool) *Clip {
	var clip *Clip

	switch s.state {
	case StateIdle:
		if isSpeech {
			s.startRecording(chunk)
		}

	case StateRecording:
		s.appendFrame(chunk)
		if isSpeech {
			s.silenceChunks = 0
		} else {
			s.silenceChunks++
			if s.silenceChunks >= s.maxSilenceChunks {
				clip = s.stopRecording()
			}
		}
	}

	s.preRoll.Push(chunk)
	return clip
}

// Flush finalizes any in-progress recording, applying the same minimum
// duration rule as the silence path. Used on shutdown.
func (s *Segmenter) Flush() *Clip {
	if s.state != StateRecording {
		return nil
	}
	return s.stopRecording()
}

// State returns the current segmentation state.
func (s *Segmenter) State() SegmenterState {
	return s.state
}

// Stats returns segmenter statistics.
func (s *Segmenter) Stats() SegmenterStats {
	return SegmenterStats{
		State:          s.state.String(),
		ClipsEmitted:   s.clipsEmitted,
		ClipsDiscarded: s.clipsDiscarded,
	}
}

func (s *Segmenter) startRecording(chunk []float32) {
	s.state = StateRecording
	s.startTime = time.Now()
	s.silenceChunks = 0
	s.recordedChunks = 0

	s.frames = s.frames[:0]
	s.frames = append(s.frames, s.preRoll.Snapshot()...)
	s.appendFrame(chunk)
}

func (s *Segmenter) appendFrame(chunk []float32) {
	stored := make([]float32, len(chunk))
	copy(stored, chunk)
	s.frames = append(s.frames, stored)
	s.recordedChunks++
}

// stopRecording ends the current recording and returns the clip, or nil
// when the recording is below the minimum utterance duration. Duration is
// computed from the recorded chunk count (pre-roll excluded), which keeps
// the machine deterministic for a given input stream.
func (s *Segmenter) stopRecording() *Clip {
	s.state = StateIdle

	recorded := s.recordedChunks
	frames := s.frames
	s.frames = nil
	s.recordedChunks = 0
	s.silenceChunks = 0

	if recorded < s.minChunks {
		s.clipsDiscarded++
		return nil
	}

	total := 0
	for _, f := range frames {
		total += len(f)
	}
	samples := make([]float32, 0, total)
	for _, f := range frames {
		samples = append(samples, f...)
	}

	s.clipsEmitted++

	chunkDuration := time.Duration(float64(s.config.ChunkSize) / float64(s.config.SampleRate) * float64(time.Second))
	return &Clip{
		ID:         uuid.NewString(),
		StartTime:  s.startTime,
		Samples:    samples,
		SampleRate: s.config.SampleRate,
		Duration:   time.Duration(recorded) * chunkDuration,
	}
}
