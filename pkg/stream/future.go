package stream

import (
	"context"
	"io"
	"sync"
)

// FromFuture returns a stream that runs f on first demand and emits its result
// once. Closing the stream cancels the context passed to f.
func FromFuture[T any](ctx context.Context, f Future[T]) Stream[T] {
	return Maybe(ctx, func(ctx context.Context) (T, bool, error) {
		v, err := f(ctx)
		return v, err == nil, err
	})
}

// Maybe returns a stream that runs f on first demand. It emits the value when f
// reports one was found and completes without emitting otherwise.
func Maybe[T any](ctx context.Context, f func(ctx context.Context) (T, bool, error)) Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	return &futureStream[T]{ctx: ctx, cancel: cancel, fn: f}
}

type futureStream[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	fn     func(ctx context.Context) (T, bool, error)

	mu      sync.Mutex
	started bool
	closed  bool
	err     error
}

func (s *futureStream[T]) Next() (T, error) {
	var zero T

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, ErrClosed
	}
	if s.started {
		err := s.err
		s.mu.Unlock()
		return zero, err
	}
	s.started = true
	s.mu.Unlock()

	v, found, err := s.fn(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()

	if s.closed {
		return zero, ErrClosed
	}
	if err != nil {
		s.err = err
		return zero, err
	}
	s.err = io.EOF
	if !found {
		return zero, io.EOF
	}
	return v, nil
}

func (s *futureStream[T]) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return nil
}
