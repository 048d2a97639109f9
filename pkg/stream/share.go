package stream

import (
	"sync"
)

// Shared multicasts a single source stream to any number of subscribers.
//
// The source is connected when the first subscriber attaches. Subscribers that
// attach while the source is live receive the most recent value first and then
// every later one. When the last subscriber closes before the source finished,
// the source is closed and the hub is torn down; a torn down hub refuses new
// subscribers. Subscribers that attach after the source finished receive the
// most recent value and the terminal result.
type Shared[T any] struct {
	src       Stream[T]
	onRelease func()

	mu        sync.Mutex
	subs      map[*subscription[T]]struct{}
	last      T
	hasLast   bool
	err       error
	connected bool
	torn      bool

	attached     chan struct{}
	produced     chan struct{}
	producedOnce sync.Once
	closeOnce    sync.Once
	releaseOnce  sync.Once
}

// Share wraps src. onRelease, when not nil, runs once after the source finished
// or the hub was torn down.
func Share[T any](src Stream[T], onRelease func()) *Shared[T] {
	return &Shared[T]{
		src:       src,
		onRelease: onRelease,
		subs:      make(map[*subscription[T]]struct{}),
		attached:  make(chan struct{}),
		produced:  make(chan struct{}),
	}
}

// Attached is closed once the first subscriber has connected the source
func (s *Shared[T]) Attached() <-chan struct{} {
	return s.attached
}

// Produced is closed as soon as the source emitted its first value, before the
// value is handed to any subscriber. MarkProduced closes it earlier.
func (s *Shared[T]) Produced() <-chan struct{} {
	return s.produced
}

// MarkProduced closes Produced without publishing anything. Operators wrapped
// around the source call it when a value exists but has side effects to run
// before it reaches the hub.
func (s *Shared[T]) MarkProduced() {
	s.producedOnce.Do(func() { close(s.produced) })
}

// Subscribe attaches a new subscriber. On a torn down hub the returned stream
// fails with ErrClosed.
func (s *Shared[T]) Subscribe() Stream[T] {
	sub, ok := s.TrySubscribe()
	if !ok {
		return Fail[T](ErrClosed)
	}
	return sub
}

// TrySubscribe attaches a new subscriber and reports false if the hub was torn
// down.
func (s *Shared[T]) TrySubscribe() (Stream[T], bool) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return nil, false
	}

	sub := &subscription[T]{hub: s, signal: make(chan struct{}, 1)}
	if s.hasLast {
		sub.queue = append(sub.queue, s.last)
	}
	if s.err != nil {
		sub.err = s.err
		s.mu.Unlock()
		return sub, true
	}
	s.subs[sub] = struct{}{}
	connect := !s.connected
	s.connected = true
	s.mu.Unlock()

	if connect {
		if !s.drainReady() {
			go s.pump()
		}
		close(s.attached)
	}
	return sub, true
}

// drainReady publishes what the source can produce without blocking and reports
// whether the source finished.
func (s *Shared[T]) drainReady() bool {
	p, ok := s.src.(poller[T])
	if !ok {
		return false
	}
	for {
		v, ready, err := p.poll()
		if !ready {
			return false
		}
		if !s.publish(v, err) {
			return true
		}
	}
}

func (s *Shared[T]) pump() {
	for {
		v, err := s.src.Next()
		if !s.publish(v, err) {
			return
		}
	}
}

// publish hands one result to every subscriber and reports whether the source
// should keep going
func (s *Shared[T]) publish(v T, err error) bool {
	s.mu.Lock()
	if s.torn || s.err != nil {
		s.mu.Unlock()
		return false
	}

	if err != nil {
		s.err = err
		for sub := range s.subs {
			sub.err = err
			sub.notify()
		}
		s.mu.Unlock()
		s.closeSource()
		s.release()
		return false
	}

	s.last, s.hasLast = v, true
	s.producedOnce.Do(func() { close(s.produced) })
	for sub := range s.subs {
		sub.queue = append(sub.queue, v)
		sub.notify()
	}
	s.mu.Unlock()
	return true
}

func (s *Shared[T]) detach(sub *subscription[T]) {
	s.mu.Lock()
	delete(s.subs, sub)
	teardown := len(s.subs) == 0 && s.err == nil && !s.torn
	if teardown {
		s.torn = true
	}
	s.mu.Unlock()

	if teardown {
		s.closeSource()
		s.release()
	}
}

func (s *Shared[T]) closeSource() {
	s.closeOnce.Do(func() { _ = s.src.Close() })
}

func (s *Shared[T]) release() {
	s.releaseOnce.Do(func() {
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}

// subscription state is guarded by the hub mutex
type subscription[T any] struct {
	hub    *Shared[T]
	signal chan struct{}

	queue  []T
	err    error
	closed bool
}

func (sub *subscription[T]) notify() {
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscription[T]) poll() (T, bool, error) {
	var zero T

	sub.hub.mu.Lock()
	defer sub.hub.mu.Unlock()

	switch {
	case sub.closed:
		return zero, true, ErrClosed
	case len(sub.queue) > 0:
		v := sub.queue[0]
		sub.queue = sub.queue[1:]
		return v, true, nil
	case sub.err != nil:
		return zero, true, sub.err
	}
	return zero, false, nil
}

func (sub *subscription[T]) Next() (T, error) {
	for {
		v, ready, err := sub.poll()
		if ready {
			return v, err
		}
		<-sub.signal
	}
}

func (sub *subscription[T]) Close() error {
	sub.hub.mu.Lock()
	if sub.closed {
		sub.hub.mu.Unlock()
		return nil
	}
	sub.closed = true
	sub.queue = nil
	sub.notify()
	sub.hub.mu.Unlock()

	sub.hub.detach(sub)
	return nil
}
