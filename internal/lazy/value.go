package lazy

import "sync"

// Value is computed on first Get and cached for its lifetime.
type Value[T any] struct {
	once sync.Once
	fn   func() T
	v    T
}

// NewValue returns a Value computed by fn.
func NewValue[T any](fn func() T) *Value[T] {
	return &Value[T]{fn: fn}
}

// Get returns the value, computing it on the first call.
func (l *Value[T]) Get() T {
	l.once.Do(func() {
		l.v = l.fn()
		l.fn = nil
	})
	return l.v
}
