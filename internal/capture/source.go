package capture

import "context"

// Source delivers captured audio as a stream of fixed-size chunks. Start
// may be called once; the returned channel is closed when the source
// stops or the context is cancelled. Chunks are owned by the receiver.
type Source interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop() error
}
