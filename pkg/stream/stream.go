package stream

import (
	"errors"
	"io"
	"sync"
)

var (
	// ErrClosed is returned by Next once the stream has been closed by its consumer
	ErrClosed = errors.New("stream: closed")

	// ErrInvalidSource is returned when normalizing a zero or nil Source
	ErrInvalidSource = errors.New("stream: invalid source")

	// ErrNoValue is returned by Then when its source completes without a value
	ErrNoValue = errors.New("stream: completed without a value")
)

// Stream is an asynchronous sequence of values
type Stream[T any] interface {
	// Next returns the next value, io.EOF once the stream is complete, or the
	// error the stream failed with. Terminal results are repeated on later calls.
	Next() (T, error)

	// Close detaches the consumer. It is idempotent.
	Close() error
}

// poller is implemented by streams that can tell whether a value is available
// without blocking. ready is false when producing the next result would block.
type poller[T any] interface {
	poll() (v T, ready bool, err error)
}

// gate is implemented by streams whose pending value may be revoked by another
// source. Merge consults it while holding its emission lock.
type gate interface {
	admit() bool
}

// Of returns a stream that emits values in order and completes
func Of[T any](values ...T) Stream[T] {
	return &sliceStream[T]{values: append([]T(nil), values...), err: io.EOF}
}

// Empty returns a stream that completes without emitting
func Empty[T any]() Stream[T] {
	return &sliceStream[T]{err: io.EOF}
}

// Fail returns a stream that fails with err without emitting.
// A nil err yields an empty stream.
func Fail[T any](err error) Stream[T] {
	if err == nil {
		err = io.EOF
	}
	return &sliceStream[T]{err: err}
}

type sliceStream[T any] struct {
	mu     sync.Mutex
	values []T
	err    error
	closed bool
}

func (s *sliceStream[T]) Next() (T, error) {
	v, _, err := s.poll()
	return v, err
}

func (s *sliceStream[T]) poll() (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.closed {
		return zero, true, ErrClosed
	}
	if len(s.values) > 0 {
		v := s.values[0]
		s.values = s.values[1:]
		return v, true, nil
	}
	return zero, true, s.err
}

func (s *sliceStream[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.values = nil
	return nil
}

// Collect drains s and returns every value it emitted. The stream is closed
// before returning. Values received before a failure are returned with the error.
func Collect[T any](s Stream[T]) ([]T, error) {
	defer func() { _ = s.Close() }()

	var out []T
	for {
		v, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// ForEach calls fn for every value emitted by s, stopping at the first error
// returned by fn or by the stream. The stream is closed before returning.
func ForEach[T any](s Stream[T], fn func(T) error) error {
	defer func() { _ = s.Close() }()

	for {
		v, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
