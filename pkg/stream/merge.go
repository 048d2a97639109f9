package stream

import (
	"errors"
	"io"
	"sync"
)

// Merge emits the values of all srcs in arrival order and completes once every
// source has completed. The first failure of any source fails the result after
// the values already received have been delivered, and closes the others.
//
// Sources are engaged in order on first demand. A source that can produce
// without blocking is drained before the next one is engaged.
func Merge[T any](srcs ...Stream[T]) Stream[T] {
	return &mergeStream[T]{
		srcs:   srcs,
		active: len(srcs),
		signal: make(chan struct{}, 1),
	}
}

type mergeStream[T any] struct {
	srcs   []Stream[T]
	signal chan struct{}

	mu      sync.Mutex
	queue   []T
	err     error
	active  int
	started bool
	closed  bool
}

func (m *mergeStream[T]) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mergeStream[T]) start() {
	for _, src := range m.srcs {
		if m.drainReady(src) {
			continue
		}
		go m.drain(src)
	}
}

// drainReady delivers what src can produce without blocking and reports whether
// src is finished.
func (m *mergeStream[T]) drainReady(src Stream[T]) bool {
	p, ok := src.(poller[T])
	if !ok {
		return false
	}
	for {
		v, ready, err := p.poll()
		if !ready {
			return false
		}
		if !m.deliver(src, v, err) {
			return true
		}
	}
}

func (m *mergeStream[T]) drain(src Stream[T]) {
	for {
		v, err := src.Next()
		if !m.deliver(src, v, err) {
			return
		}
	}
}

// deliver records one result of src and reports whether src should keep going
func (m *mergeStream[T]) deliver(src Stream[T], v T, err error) bool {
	var toClose []Stream[T]
	defer func() {
		for _, s := range toClose {
			_ = s.Close()
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.notify()

	if m.closed || m.err != nil {
		return false
	}

	switch {
	case errors.Is(err, io.EOF):
		m.active--
		return false
	case err != nil:
		m.err = err
		for _, s := range m.srcs {
			if s != src {
				toClose = append(toClose, s)
			}
		}
		return false
	}

	if g, ok := src.(gate); ok && !g.admit() {
		m.active--
		toClose = append(toClose, src)
		return false
	}

	m.queue = append(m.queue, v)
	return true
}

// take returns the next buffered result. ready is false when the consumer has
// to wait for a source.
func (m *mergeStream[T]) take() (T, bool, error) {
	var zero T

	m.mu.Lock()
	if !m.started {
		m.started = true
		m.mu.Unlock()
		m.start()
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return zero, true, ErrClosed
	case len(m.queue) > 0:
		v := m.queue[0]
		m.queue = m.queue[1:]
		return v, true, nil
	case m.err != nil:
		return zero, true, m.err
	case m.active == 0:
		return zero, true, io.EOF
	}
	return zero, false, nil
}

func (m *mergeStream[T]) Next() (T, error) {
	for {
		v, ready, err := m.take()
		if ready {
			return v, err
		}
		<-m.signal
	}
}

func (m *mergeStream[T]) poll() (T, bool, error) {
	return m.take()
}

func (m *mergeStream[T]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.queue = nil
	m.mu.Unlock()

	var errs []error
	for _, s := range m.srcs {
		errs = append(errs, s.Close())
	}
	m.notify()
	return errors.Join(errs...)
}

// TakeUntil mirrors src until signal is closed, then closes src and completes.
// A value of src that becomes available after signal was closed is dropped,
// including when src is merged with other sources.
func TakeUntil[T any](src Stream[T], signal <-chan struct{}) Stream[T] {
	return &takeUntilStream[T]{src: src, signal: signal}
}

type takeUntilStream[T any] struct {
	src    Stream[T]
	signal <-chan struct{}
}

type result[T any] struct {
	v   T
	err error
}

func (t *takeUntilStream[T]) stopped() bool {
	select {
	case <-t.signal:
		return true
	default:
		return false
	}
}

func (t *takeUntilStream[T]) stop() (T, error) {
	var zero T
	_ = t.src.Close()
	return zero, io.EOF
}

func (t *takeUntilStream[T]) admit() bool {
	return !t.stopped()
}

func (t *takeUntilStream[T]) Next() (T, error) {
	if t.stopped() {
		return t.stop()
	}
	if v, ready, err := t.poll(); ready {
		return v, err
	}

	ch := make(chan result[T], 1)
	go func() {
		v, err := t.src.Next()
		ch <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && t.stopped() {
			return t.stop()
		}
		return r.v, r.err
	case <-t.signal:
		return t.stop()
	}
}

func (t *takeUntilStream[T]) poll() (T, bool, error) {
	var zero T
	if t.stopped() {
		v, err := t.stop()
		return v, true, err
	}
	p, ok := t.src.(poller[T])
	if !ok {
		return zero, false, nil
	}
	v, ready, err := p.poll()
	if ready && err == nil && t.stopped() {
		v, err := t.stop()
		return v, true, err
	}
	return v, ready, err
}

func (t *takeUntilStream[T]) Close() error {
	return t.src.Close()
}
