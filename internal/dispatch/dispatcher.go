package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mikesmullin/perception-voice/internal/audio"
	"github.com/mikesmullin/perception-voice/internal/capture"
	"github.com/mikesmullin/perception-voice/internal/metrics"
	"github.com/mikesmullin/perception-voice/internal/store"
	"github.com/mikesmullin/perception-voice/internal/transcription"
	"github.com/mikesmullin/perception-voice/internal/vad"
)

// DefaultShutdownGrace bounds the wait for in-flight transcriptions when
// the dispatcher stops.
const DefaultShutdownGrace = 10 * time.Second

// Dispatcher owns the capture loop and fans completed clips out to the
// transcription engine. The capture loop never blocks on transcription;
// concurrency is bounded inside the engine.
type Dispatcher struct {
	source    capture.Source
	detector  vad.Detector
	cascade   *vad.Cascade // non-nil when the detector is a cascade
	segmenter *audio.Segmenter
	engine    transcription.Engine
	store     *store.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics

	shutdownGrace time.Duration

	// Last observed collaborator counters, used to publish deltas to
	// Prometheus. Only touched from the capture goroutine.
	lastConfirmChecks uint64
	lastDiscarded     uint64

	// Counters
	chunksProcessed uint64
	vadErrors       uint64
	clipsInFlight   int
	mu              sync.RWMutex

	transcriptions sync.WaitGroup
}

// Config assembles the dispatcher's collaborators
type Config struct {
	Source        capture.Source
	Detector      vad.Detector
	Segmenter     *audio.Segmenter
	Engine        transcription.Engine
	Store         *store.Store
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	ShutdownGrace time.Duration
}

// New creates a dispatcher from its collaborators
func New(cfg Config) *Dispatcher {
	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	cascade, _ := cfg.Detector.(*vad.Cascade)

	return &Dispatcher{
		source:        cfg.Source,
		detector:      cfg.Detector,
		cascade:       cascade,
		segmenter:     cfg.Segmenter,
		engine:        cfg.Engine,
		store:         cfg.Store,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		shutdownGrace: grace,
	}
}

// Run starts the capture source and processes chunks until the context
// is cancelled or the source channel closes. It always flushes the
// segmenter on the way out, then waits up to the shutdown grace period
// for in-flight transcriptions.
func (d *Dispatcher) Run(ctx context.Context) error {
	chunks, err := d.source.Start(ctx)
	if err != nil {
		return err
	}

	d.logger.Info("Dispatcher started")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			d.processChunk(chunk)
		}
	}

	if err := d.source.Stop(); err != nil {
		d.logger.Warn("Error stopping capture source", slog.String("error", err.Error()))
	}

	// A recording cut off by shutdown is still worth transcribing.
	d.mu.Lock()
	clip := d.segmenter.Flush()
	discarded := d.segmenter.Stats().ClipsDiscarded
	d.mu.Unlock()
	d.publishPipelineCounters(discarded)
	if clip != nil {
		d.dispatchClip(clip)
	}

	d.waitForTranscriptions()

	d.mu.RLock()
	stats := d.segmenter.Stats()
	d.mu.RUnlock()
	d.logger.Info("Dispatcher stopped",
		slog.Uint64("chunks_processed", d.getChunksProcessed()),
		slog.Uint64("clips_emitted", stats.ClipsEmitted),
		slog.Uint64("clips_discarded", stats.ClipsDiscarded),
	)

	return nil
}

// processChunk runs one chunk through VAD and segmentation
func (d *Dispatcher) processChunk(chunk []float32) {
	if d.metrics != nil {
		d.metrics.ChunksCaptured.Inc()
		d.metrics.VADChecks.Inc()
	}

	isSpeech, _, err := d.detector.IsSpeech(chunk)
	if err != nil {
		// The chunk still has to reach the segmenter so an open recording
		// accumulates trailing silence and can close.
		d.mu.Lock()
		d.vadErrors++
		d.mu.Unlock()
		d.logger.Warn("VAD check failed, treating chunk as silence", slog.String("error", err.Error()))
		isSpeech = false
	}

	if isSpeech && d.metrics != nil {
		d.metrics.VADSpeechChunks.Inc()
	}

	// The segmenter is not concurrency-safe; the dispatcher mutex keeps
	// Feed exclusive against the stats endpoint.
	d.mu.Lock()
	d.chunksProcessed++
	clip := d.segmenter.Feed(chunk, isSpeech)
	discarded := d.segmenter.Stats().ClipsDiscarded
	d.mu.Unlock()

	d.publishPipelineCounters(discarded)

	if clip != nil {
		d.dispatchClip(clip)
	}
}

// publishPipelineCounters mirrors collaborator counters into Prometheus.
// The segmenter and cascade keep their own totals, so the deltas since
// the last observation are added to the corresponding counters.
func (d *Dispatcher) publishPipelineCounters(discarded uint64) {
	if d.metrics == nil {
		return
	}

	if discarded > d.lastDiscarded {
		d.metrics.ClipsDiscarded.Add(float64(discarded - d.lastDiscarded))
		d.lastDiscarded = discarded
	}

	if d.cascade != nil {
		confirmChecks := d.cascade.Stats().ConfirmChecks
		if confirmChecks > d.lastConfirmChecks {
			d.metrics.VADConfirmChecks.Add(float64(confirmChecks - d.lastConfirmChecks))
			d.lastConfirmChecks = confirmChecks
		}
	}
}

// dispatchClip hands a clip to the engine in the background. The
// transcription context is detached from the capture context so that
// shutdown does not abort work already in flight; the bounded join in
// Run limits how long that work may linger.
func (d *Dispatcher) dispatchClip(clip *audio.Clip) {
	if d.metrics != nil {
		d.metrics.ClipsEmitted.Inc()
		d.metrics.ClipDuration.Observe(clip.Duration.Seconds())
	}

	d.logger.Debug("Clip emitted",
		slog.String("clip_id", clip.ID),
		slog.Duration("duration", clip.Duration),
		slog.Int("samples", len(clip.Samples)),
	)

	d.mu.Lock()
	d.clipsInFlight++
	d.mu.Unlock()

	d.transcriptions.Add(1)
	go func() {
		defer d.transcriptions.Done()
		defer func() {
			d.mu.Lock()
			d.clipsInFlight--
			d.mu.Unlock()
		}()

		d.transcribeClip(context.Background(), clip)
	}()
}

// transcribeClip runs one clip through the engine and stores the result
func (d *Dispatcher) transcribeClip(ctx context.Context, clip *audio.Clip) {
	startTime := time.Now()

	if d.metrics != nil {
		d.metrics.TranscriptionRequests.Inc()
	}

	text, err := d.engine.Transcribe(ctx, clip)
	if err != nil {
		if d.metrics != nil {
			d.metrics.TranscriptionFailures.Inc()
		}
		d.logger.Error("Transcription failed, clip dropped",
			slog.String("clip_id", clip.ID),
			slog.Duration("clip_duration", clip.Duration),
			slog.String("error", err.Error()),
		)
		return
	}

	if d.metrics != nil {
		d.metrics.TranscriptionSuccesses.Inc()
		d.metrics.TranscriptionDuration.Observe(time.Since(startTime).Seconds())
	}

	accepted := d.store.Add(text)
	if d.metrics != nil {
		if accepted {
			d.metrics.UtterancesStored.Inc()
		} else {
			d.metrics.UtterancesDiscarded.Inc()
		}
		d.metrics.StoreSize.Set(float64(d.store.GetStats().Utterances))
	}

	d.logger.Info("Utterance transcribed",
		slog.String("clip_id", clip.ID),
		slog.Duration("clip_duration", clip.Duration),
		slog.Duration("transcription_time", time.Since(startTime)),
		slog.Bool("stored", accepted),
		slog.Int("text_length", len(text)),
	)
}

// waitForTranscriptions joins in-flight transcription goroutines with a
// bounded wait
func (d *Dispatcher) waitForTranscriptions() {
	done := make(chan struct{})
	go func() {
		d.transcriptions.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.shutdownGrace):
		d.mu.RLock()
		inFlight := d.clipsInFlight
		d.mu.RUnlock()
		d.logger.Warn("Shutdown grace expired with transcriptions in flight",
			slog.Int("in_flight", inFlight),
		)
	}
}

func (d *Dispatcher) getChunksProcessed() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chunksProcessed
}

// GetStats returns pipeline counters for the monitoring endpoint
func (d *Dispatcher) GetStats() map[string]interface{} {
	d.mu.RLock()
	chunksProcessed := d.chunksProcessed
	vadErrors := d.vadErrors
	inFlight := d.clipsInFlight
	segStats := d.segmenter.Stats()
	d.mu.RUnlock()

	stats := map[string]interface{}{
		"chunks_processed": chunksProcessed,
		"vad_errors":       vadErrors,
		"clips_in_flight":  inFlight,
		"segmenter_state":  segStats.State,
		"clips_emitted":    segStats.ClipsEmitted,
		"clips_discarded":  segStats.ClipsDiscarded,
	}

	if cascade, ok := d.detector.(*vad.Cascade); ok {
		stats["vad"] = cascade.Stats()
	}

	return stats
}
