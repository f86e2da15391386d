package avatar3d

import "sync"

// WeightSink is the renderer side of the adapter: it owns the mesh and applies a
// value in [0, 100] to the blend shape at index.
type WeightSink interface {
	SetBlendShapeWeight(index int, value float32)
}

// MemorySink is a headless WeightSink that remembers the last value per index.
// It is safe to read from another goroutine while the frame loop writes.
type MemorySink struct {
	mu     sync.RWMutex
	names  []string
	values []float32
}

// NewMemorySink creates a sink for a mesh declaring names.
func NewMemorySink(names []string) *MemorySink {
	return &MemorySink{
		names:  append([]string(nil), names...),
		values: make([]float32, len(names)),
	}
}

func (s *MemorySink) SetBlendShapeWeight(index int, value float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.values) {
		return
	}
	s.values[index] = value
}

// Value returns the current value at index.
func (s *MemorySink) Value(index int) float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.values) {
		return 0
	}
	return s.values[index]
}

// Snapshot returns every weight keyed by blend-shape name.
func (s *MemorySink) Snapshot() map[string]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float32, len(s.values))
	for i, v := range s.values {
		out[s.names[i]] = v
	}
	return out
}
