package transcription

import (
	"context"

	"github.com/mikesmullin/perception-voice/internal/audio"
)

// Engine transcribes a single utterance clip to text. Implementations
// must be safe for concurrent use; the dispatcher issues one call per
// emitted clip.
type Engine interface {
	Transcribe(ctx context.Context, clip *audio.Clip) (string, error)
}
