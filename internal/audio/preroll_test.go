package audio

import "testing"

func TestPreRollBufferEmpty(t *testing.T) {
	b := NewPreRollBuffer(4)

	if got := b.Len(); got != 0 {
		t.Errorf("expected empty buffer, got len %d", got)
	}

	if snap := b.Snapshot(); len(snap) != 0 {
		t.Errorf("expected empty snapshot, got %d chunks", len(snap))
	}
}

func TestPreRollBufferMinimumCapacity(t *testing.T) {
	b := NewPreRollBuffer(0)
	if b.Cap() != 1 {
		t.Errorf("expected capacity raised to 1, got %d", b.Cap())
	}
}

func TestPreRollBufferChronologicalOrder(t *testing.T) {
	b := NewPreRollBuffer(3)

	b.Push(chunkOf(1))
	b.Push(chunkOf(2))

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(snap))
	}
	if snap[0][0] != 1 || snap[1][0] != 2 {
		t.Errorf("snapshot out of order: %v %v", snap[0][0], snap[1][0])
	}
}

func TestPreRollBufferOverwritesOldest(t *testing.T) {
	b := NewPreRollBuffer(3)

	for i := 1; i <= 5; i++ {
		b.Push(chunkOf(float32(i)))
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(snap))
	}

	want := []float32{3, 4, 5}
	for i, chunk := range snap {
		if chunk[0] != want[i] {
			t.Errorf("chunk %d: expected marker %v, got %v", i, want[i], chunk[0])
		}
	}
}

func TestPreRollBufferCopiesOnPush(t *testing.T) {
	b := NewPreRollBuffer(2)

	chunk := chunkOf(7)
	b.Push(chunk)
	chunk[0] = 99 // caller reuses its buffer

	snap := b.Snapshot()
	if snap[0][0] != 7 {
		t.Errorf("expected stored copy to keep value 7, got %v", snap[0][0])
	}
}

// chunkOf creates a small chunk whose first sample marks its identity
func chunkOf(marker float32) []float32 {
	c := make([]float32, 4)
	c[0] = marker
	return c
}
