package capability

import "sync/atomic"

// Store is a single-writer, multi-reader snapshot cell. Published values must
// not be mutated; a change is a new value passed to Replace.
type Store[T any] struct {
	p atomic.Pointer[T]
}

// Load returns the current snapshot, or nil before the first Replace.
func (s *Store[T]) Load() *T {
	return s.p.Load()
}

// Replace publishes v and returns the snapshot it replaced.
func (s *Store[T]) Replace(v *T) *T {
	return s.p.Swap(v)
}
