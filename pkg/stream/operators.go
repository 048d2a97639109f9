package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Defer returns a stream whose underlying stream is built by factory on first
// demand. A nil stream from factory fails with ErrInvalidSource.
func Defer[T any](factory func() Stream[T]) Stream[T] {
	return &deferStream[T]{factory: factory}
}

type deferStream[T any] struct {
	factory func() Stream[T]

	mu     sync.Mutex
	inner  Stream[T]
	closed bool
}

func (d *deferStream[T]) get() (Stream[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.inner == nil {
		d.inner = d.factory()
		if d.inner == nil {
			d.inner = Fail[T](ErrInvalidSource)
		}
	}
	return d.inner, nil
}

func (d *deferStream[T]) Next() (T, error) {
	inner, err := d.get()
	if err != nil {
		var zero T
		return zero, err
	}
	return inner.Next()
}

func (d *deferStream[T]) poll() (T, bool, error) {
	var zero T
	inner, err := d.get()
	if err != nil {
		return zero, true, err
	}
	if p, ok := inner.(poller[T]); ok {
		return p.poll()
	}
	return zero, false, nil
}

func (d *deferStream[T]) admit() bool {
	d.mu.Lock()
	inner := d.inner
	d.mu.Unlock()

	if g, ok := inner.(gate); ok {
		return g.admit()
	}
	return true
}

func (d *deferStream[T]) Close() error {
	d.mu.Lock()
	d.closed = true
	inner := d.inner
	d.mu.Unlock()

	if inner != nil {
		return inner.Close()
	}
	return nil
}

// Map transforms every value of src with fn
func Map[T, U any](src Stream[T], fn func(T) U) Stream[U] {
	return &mapStream[T, U]{src: src, fn: fn}
}

// Tap calls fn with every value of src and passes the value through unchanged
func Tap[T any](src Stream[T], fn func(T)) Stream[T] {
	return Map(src, func(v T) T {
		fn(v)
		return v
	})
}

type mapStream[T, U any] struct {
	src Stream[T]
	fn  func(T) U
}

func (m *mapStream[T, U]) Next() (U, error) {
	v, err := m.src.Next()
	if err != nil {
		var zero U
		return zero, err
	}
	return m.fn(v), nil
}

func (m *mapStream[T, U]) poll() (U, bool, error) {
	var zero U
	p, ok := m.src.(poller[T])
	if !ok {
		return zero, false, nil
	}
	v, ready, err := p.poll()
	if !ready || err != nil {
		return zero, ready, err
	}
	return m.fn(v), true, nil
}

func (m *mapStream[T, U]) admit() bool {
	if g, ok := m.src.(gate); ok {
		return g.admit()
	}
	return true
}

func (m *mapStream[T, U]) Close() error {
	return m.src.Close()
}

// Then waits for the first value of src, closes src, and continues with the
// stream fn builds from that value. When src completes without a value the
// result fails with ErrNoValue; when src fails the result fails the same way.
func Then[T, U any](src Stream[T], fn func(T) Stream[U]) Stream[U] {
	return &thenStream[T, U]{src: src, fn: fn}
}

type thenStream[T, U any] struct {
	src Stream[T]
	fn  func(T) Stream[U]

	mu     sync.Mutex
	inner  Stream[U]
	closed bool
}

func (t *thenStream[T, U]) resolve(block bool) (Stream[U], bool, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, true, ErrClosed
	}
	if t.inner != nil {
		inner := t.inner
		t.mu.Unlock()
		return inner, true, nil
	}
	t.mu.Unlock()

	var (
		v   T
		err error
	)
	if block {
		v, err = t.src.Next()
	} else {
		p, ok := t.src.(poller[T])
		if !ok {
			return nil, false, nil
		}
		var ready bool
		if v, ready, err = p.poll(); !ready {
			return nil, false, nil
		}
	}
	_ = t.src.Close()

	var inner Stream[U]
	switch {
	case errors.Is(err, io.EOF):
		inner = Fail[U](ErrNoValue)
	case err != nil:
		inner = Fail[U](err)
	default:
		if inner = t.fn(v); inner == nil {
			inner = Fail[U](ErrInvalidSource)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		_ = inner.Close()
		return nil, true, ErrClosed
	}
	t.inner = inner
	return inner, true, nil
}

func (t *thenStream[T, U]) Next() (U, error) {
	inner, _, err := t.resolve(true)
	if err != nil {
		var zero U
		return zero, err
	}
	return inner.Next()
}

func (t *thenStream[T, U]) poll() (U, bool, error) {
	var zero U
	inner, ready, err := t.resolve(false)
	if !ready || err != nil {
		return zero, ready, err
	}
	if p, ok := inner.(poller[U]); ok {
		return p.poll()
	}
	return zero, false, nil
}

func (t *thenStream[T, U]) Close() error {
	t.mu.Lock()
	t.closed = true
	inner := t.inner
	t.mu.Unlock()

	err := t.src.Close()
	if inner != nil {
		err = errors.Join(err, inner.Close())
	}
	return err
}

// Catch switches to the stream fn builds from the first failure of src.
// Completion and ErrClosed are not failures. Failures of the replacement
// stream are returned as is.
func Catch[T any](src Stream[T], fn func(error) Stream[T]) Stream[T] {
	return &catchStream[T]{cur: src, fn: fn}
}

type catchStream[T any] struct {
	fn func(error) Stream[T]

	mu       sync.Mutex
	cur      Stream[T]
	switched bool
	closed   bool
}

func caught(err error) bool {
	return err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, ErrClosed)
}

// fallback replaces the failed stream. It returns the failure itself when the
// replacement has already been used.
func (c *catchStream[T]) fallback(failed Stream[T], err error) (Stream[T], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.switched {
		c.mu.Unlock()
		return nil, err
	}
	c.switched = true
	c.mu.Unlock()

	_ = failed.Close()
	next := c.fn(err)
	if next == nil {
		next = Fail[T](err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = next.Close()
		return nil, ErrClosed
	}
	c.cur = next
	return next, nil
}

func (c *catchStream[T]) current() (Stream[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.cur, nil
}

func (c *catchStream[T]) Next() (T, error) {
	var zero T
	cur, err := c.current()
	if err != nil {
		return zero, err
	}

	v, err := cur.Next()
	if !caught(err) {
		return v, err
	}
	next, err := c.fallback(cur, err)
	if err != nil {
		return zero, err
	}
	return next.Next()
}

func (c *catchStream[T]) poll() (T, bool, error) {
	var zero T
	cur, err := c.current()
	if err != nil {
		return zero, true, err
	}

	p, ok := cur.(poller[T])
	if !ok {
		return zero, false, nil
	}
	v, ready, err := p.poll()
	if !ready || !caught(err) {
		return v, ready, err
	}
	next, err := c.fallback(cur, err)
	if err != nil {
		return zero, true, err
	}
	if p, ok := next.(poller[T]); ok {
		return p.poll()
	}
	return zero, false, nil
}

func (c *catchStream[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cur := c.cur
	c.mu.Unlock()

	return cur.Close()
}

// Bind ties src to ctx: when ctx is done src is closed and Next reports the
// context error instead of ErrClosed.
func Bind[T any](ctx context.Context, src Stream[T]) Stream[T] {
	b := &boundStream[T]{ctx: ctx, src: src}
	b.stop = context.AfterFunc(ctx, func() { _ = src.Close() })
	return b
}

type boundStream[T any] struct {
	ctx  context.Context
	src  Stream[T]
	stop func() bool
}

func (b *boundStream[T]) translate(err error) error {
	if errors.Is(err, ErrClosed) && b.ctx.Err() != nil {
		return b.ctx.Err()
	}
	return err
}

func (b *boundStream[T]) Next() (T, error) {
	v, err := b.src.Next()
	return v, b.translate(err)
}

func (b *boundStream[T]) poll() (T, bool, error) {
	var zero T
	p, ok := b.src.(poller[T])
	if !ok {
		return zero, false, nil
	}
	v, ready, err := p.poll()
	return v, ready, b.translate(err)
}

func (b *boundStream[T]) admit() bool {
	if g, ok := b.src.(gate); ok {
		return g.admit()
	}
	return true
}

func (b *boundStream[T]) Close() error {
	b.stop()
	return b.src.Close()
}

// FailIfEmpty mirrors src and fails with err when src completes without
// emitting a value.
func FailIfEmpty[T any](src Stream[T], err error) Stream[T] {
	return &nonEmptyStream[T]{src: src, err: err}
}

type nonEmptyStream[T any] struct {
	src Stream[T]
	err error

	mu      sync.Mutex
	emitted bool
}

func (s *nonEmptyStream[T]) check(v T, err error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.emitted = true
	case errors.Is(err, io.EOF) && !s.emitted:
		return v, s.err
	}
	return v, err
}

func (s *nonEmptyStream[T]) Next() (T, error) {
	return s.check(s.src.Next())
}

func (s *nonEmptyStream[T]) poll() (T, bool, error) {
	var zero T
	p, ok := s.src.(poller[T])
	if !ok {
		return zero, false, nil
	}
	v, ready, err := p.poll()
	if !ready {
		return zero, false, nil
	}
	v, err = s.check(v, err)
	return v, true, err
}

func (s *nonEmptyStream[T]) Close() error {
	return s.src.Close()
}

// Finally mirrors src and calls fn exactly once when the stream ends: with
// nil after a normal completion, with the error after a failure, or with
// ErrClosed when the stream is closed first.
func Finally[T any](src Stream[T], fn func(err error)) Stream[T] {
	return &finallyStream[T]{src: src, fn: fn}
}

type finallyStream[T any] struct {
	src  Stream[T]
	fn   func(err error)
	once sync.Once
}

func (s *finallyStream[T]) end(err error) {
	if errors.Is(err, io.EOF) {
		err = nil
	}
	s.once.Do(func() { s.fn(err) })
}

func (s *finallyStream[T]) Next() (T, error) {
	v, err := s.src.Next()
	if err != nil {
		s.end(err)
	}
	return v, err
}

func (s *finallyStream[T]) poll() (T, bool, error) {
	var zero T
	p, ok := s.src.(poller[T])
	if !ok {
		return zero, false, nil
	}
	v, ready, err := p.poll()
	if ready && err != nil {
		s.end(err)
	}
	return v, ready, err
}

func (s *finallyStream[T]) admit() bool {
	if g, ok := s.src.(gate); ok {
		return g.admit()
	}
	return true
}

func (s *finallyStream[T]) Close() error {
	err := s.src.Close()
	s.end(ErrClosed)
	return err
}
