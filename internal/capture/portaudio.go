package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/mikesmullin/perception-voice/internal/metrics"
)

// PortAudioSource captures mono float32 audio from a system input device
type PortAudioSource struct {
	sampleRate int
	chunkSize  int
	device     int // -1 selects the default input device
	logger     *slog.Logger
	metrics    *metrics.Metrics

	stream *portaudio.Stream
	buffer []float32

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	mu      sync.Mutex
}

// NewPortAudioSource creates a capture source. device is a PortAudio
// device index, or -1 to auto-detect. m may be nil.
func NewPortAudioSource(sampleRate, chunkSize, device int, logger *slog.Logger, m *metrics.Metrics) *PortAudioSource {
	return &PortAudioSource{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		device:     device,
		logger:     logger,
		metrics:    m,
	}
}

// Start initializes PortAudio, opens the input stream and begins reading
// chunks into the returned channel. A busy consumer causes chunks to be
// dropped rather than stalling the device callback.
func (p *PortAudioSource) Start(ctx context.Context) (<-chan []float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil, fmt.Errorf("capture source already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	device, err := p.selectDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	p.buffer = make([]float32, p.chunkSize)

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(p.sampleRate)
	params.FramesPerBuffer = p.chunkSize

	stream, err := portaudio.OpenStream(params, p.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	p.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	p.logger.Info("Audio capture started",
		slog.String("device", device.Name),
		slog.Int("sample_rate", p.sampleRate),
		slog.Int("chunk_size", p.chunkSize),
	)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true

	out := make(chan []float32, 8)
	go p.readLoop(runCtx, out)

	return out, nil
}

// selectDevice resolves the configured device index, falling back to the
// system default input device.
func (p *PortAudioSource) selectDevice() (*portaudio.DeviceInfo, error) {
	if p.device >= 0 {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
		}
		if p.device >= len(devices) {
			return nil, fmt.Errorf("audio device index %d out of range (%d devices)", p.device, len(devices))
		}
		device := devices[p.device]
		if device.MaxInputChannels < 1 {
			return nil, fmt.Errorf("audio device %q has no input channels", device.Name)
		}
		return device, nil
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("no default input device: %w", err)
	}
	return device, nil
}

// readLoop pulls chunks from the stream until cancellation
func (p *PortAudioSource) readLoop(ctx context.Context, out chan<- []float32) {
	defer close(p.done)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.stream.Read(); err != nil {
			// Overflows happen when the consumer falls behind; the device
			// keeps running, so log and continue.
			if err == portaudio.InputOverflowed {
				p.logger.Warn("Input overflowed, audio dropped")
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				p.logger.Error("Failed to read audio stream", slog.String("error", err.Error()))
				return
			}
		}

		chunk := make([]float32, len(p.buffer))
		copy(chunk, p.buffer)

		p.deliver(out, chunk)
	}
}

// deliver hands a chunk to the consumer without blocking the device loop.
// Returns false when the channel is full and the chunk was dropped.
func (p *PortAudioSource) deliver(out chan<- []float32, chunk []float32) bool {
	select {
	case out <- chunk:
		return true
	default:
		if p.metrics != nil {
			p.metrics.ChunksDropped.Inc()
		}
		p.logger.Warn("Capture channel full, dropping chunk")
		return false
	}
}

// Stop stops the stream and releases PortAudio resources
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	p.cancel()

	if err := p.stream.Stop(); err != nil {
		p.logger.Warn("Error stopping input stream", slog.String("error", err.Error()))
	}

	<-p.done

	if err := p.stream.Close(); err != nil {
		p.logger.Warn("Error closing input stream", slog.String("error", err.Error()))
	}

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}

	p.logger.Info("Audio capture stopped")
	return nil
}
