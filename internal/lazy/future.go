package lazy

import (
	"context"
	"sync"
)

// Future runs a computation at most once, on first demand, and memoizes its
// outcome. Wait is bounded by the caller's context; abandoning a wait does
// not stop the computation, whose own context is fixed at construction.
type Future[T any] struct {
	ctx   context.Context
	fn    func(context.Context) (T, error)
	start sync.Once
	done  chan struct{}

	v   T
	err error
}

// NewFuture returns a Future that will run fn with ctx once started.
func NewFuture[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	return &Future[T]{ctx: ctx, fn: fn, done: make(chan struct{})}
}

// Start launches the computation if it is not already running.
func (f *Future[T]) Start() {
	f.start.Do(func() {
		go func() {
			defer close(f.done)
			f.v, f.err = f.fn(f.ctx)
		}()
	})
}

// Wait starts the computation if needed and blocks until it completes or
// ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	f.Start()
	select {
	case <-f.done:
		return f.v, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether the computation has finished.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
