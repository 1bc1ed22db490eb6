package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription daemon
type Metrics struct {
	// Capture pipeline metrics
	ChunksCaptured prometheus.Counter
	ChunksDropped  prometheus.Counter

	// VAD metrics
	VADChecks        prometheus.Counter
	VADConfirmChecks prometheus.Counter
	VADSpeechChunks  prometheus.Counter

	// Segmentation metrics
	ClipsEmitted   prometheus.Counter
	ClipsDiscarded prometheus.Counter
	ClipDuration   prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionRetries   prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Store metrics
	UtterancesStored    prometheus.Counter
	UtterancesDiscarded prometheus.Counter
	StoreSize           prometheus.Gauge

	// Socket server metrics
	ConnectionsAccepted prometheus.Counter
	RequestErrors       prometheus.Counter
}

// NewMetrics creates and registers all metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics on the given registerer. Tests pass
// a fresh registry so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_chunks_captured_total",
			Help: "Total number of audio chunks read from the capture source",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because the pipeline was busy",
		}),

		VADChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_vad_checks_total",
			Help: "Total number of chunks run through voice activity detection",
		}),
		VADConfirmChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_vad_confirm_checks_total",
			Help: "Total number of chunks that reached the confirming VAD stage",
		}),
		VADSpeechChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_vad_speech_chunks_total",
			Help: "Total number of chunks classified as speech",
		}),

		ClipsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_clips_emitted_total",
			Help: "Total number of utterance clips emitted by the segmenter",
		}),
		ClipsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_clips_discarded_total",
			Help: "Total number of clips discarded for falling under the minimum duration",
		}),
		ClipDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pv_clip_duration_seconds",
			Help:    "Duration of emitted utterance clips",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_transcription_requests_total",
			Help: "Total number of transcription requests sent to the engine",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_transcription_successes_total",
			Help: "Total number of successful transcriptions",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_transcription_failures_total",
			Help: "Total number of failed transcriptions after all retries",
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pv_transcription_duration_seconds",
			Help:    "Wall time spent per transcription request",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1.5 minutes
		}),

		UtterancesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_utterances_stored_total",
			Help: "Total number of utterances accepted into the store",
		}),
		UtterancesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_utterances_discarded_total",
			Help: "Total number of utterances rejected as empty or discard phrases",
		}),
		StoreSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pv_store_utterances",
			Help: "Current number of utterances held in the store",
		}),

		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_socket_connections_total",
			Help: "Total number of client connections accepted on the unix socket",
		}),
		RequestErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pv_socket_request_errors_total",
			Help: "Total number of client requests that produced an error response",
		}),
	}
}
