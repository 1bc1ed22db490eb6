package audio

// PreRollBuffer is a fixed-capacity circular history of the most recent
// capture chunks. It is always populated regardless of speech state so that
// utterance onset is not clipped by classifier reaction latency.
//
// The buffer is owned exclusively by the capture context and is not safe
// for concurrent use.
type PreRollBuffer struct {
	chunks [][]float32
	next   int
	filled int
}

// NewPreRollBuffer creates a buffer holding up to capacity chunks.
// A capacity below 1 is raised to 1.
func NewPreRollBuffer(capacity int) *PreRollBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &PreRollBuffer{
		chunks: make([][]float32, capacity),
	}
}

// Push stores a copy of the chunk, overwriting the oldest slot once full.
func (b *PreRollBuffer) Push(chunk []float32) {
	stored := make([]float32, len(chunk))
	copy(stored, chunk)

	b.chunks[b.next] = stored
	b.next = (b.next + 1) % len(b.chunks)
	if b.filled < len(b.chunks) {
		b.filled++
	}
}

// Snapshot returns the current contents in chronological order. The
// returned slice references the stored chunk copies; callers must not
// mutate them.
func (b *PreRollBuffer) Snapshot() [][]float32 {
	out := make([][]float32, 0, b.filled)

	start := 0
	if b.filled == len(b.chunks) {
		start = b.next
	}
	for i := 0; i < b.filled; i++ {
		out = append(out, b.chunks[(start+i)%len(b.chunks)])
	}
	return out
}

// Len returns the number of chunks currently held.
func (b *PreRollBuffer) Len() int {
	return b.filled
}

// Cap returns the buffer capacity in chunks.
func (b *PreRollBuffer) Cap() int {
	return len(b.chunks)
}
