package stream

import (
	"context"
	"fmt"
)

// Kind identifies the shape of a Source
type Kind int

const (
	// KindInvalid is the zero Source, which normalizes to ErrInvalidSource
	KindInvalid Kind = iota
	// KindEager holds a value that is already known
	KindEager
	// KindDeferred holds a Future resolving to one value
	KindDeferred
	// KindStreaming holds a Stream of zero or more values
	KindStreaming
)

func (k Kind) String() string {
	switch k {
	case KindEager:
		return "eager"
	case KindDeferred:
		return "deferred"
	case KindStreaming:
		return "streaming"
	default:
		return "invalid"
	}
}

// Future produces a single value once it has been computed
type Future[T any] func(ctx context.Context) (T, error)

// Source is the result a plugin hands back: a plain value, a deferred value, or
// a stream. The zero Source is invalid.
type Source[T any] struct {
	kind   Kind
	value  T
	future Future[T]
	stream Stream[T]
}

// Eager wraps a value that is already known
func Eager[T any](v T) Source[T] {
	return Source[T]{kind: KindEager, value: v}
}

// Deferred wraps a value that will be produced by f
func Deferred[T any](f Future[T]) Source[T] {
	return Source[T]{kind: KindDeferred, future: f}
}

// Streaming wraps an existing stream
func Streaming[T any](s Stream[T]) Source[T] {
	return Source[T]{kind: KindStreaming, stream: s}
}

// Failed wraps a failure
func Failed[T any](err error) Source[T] {
	return Streaming(Fail[T](err))
}

// Kind reports the shape of the source
func (s Source[T]) Kind() Kind {
	return s.kind
}

func (s Source[T]) String() string {
	return fmt.Sprintf("stream.Source(%s)", s.kind)
}

// From normalizes src into a Stream. An eager value is emitted once before the
// stream completes; a deferred value is emitted once it resolves, or its error
// fails the stream; a streaming source is returned unchanged.
func From[T any](ctx context.Context, src Source[T]) Stream[T] {
	switch src.kind {
	case KindEager:
		return Of(src.value)
	case KindDeferred:
		if src.future == nil {
			return Fail[T](ErrInvalidSource)
		}
		return FromFuture(ctx, src.future)
	case KindStreaming:
		if src.stream == nil {
			return Fail[T](ErrInvalidSource)
		}
		return src.stream
	default:
		return Fail[T](ErrInvalidSource)
	}
}
