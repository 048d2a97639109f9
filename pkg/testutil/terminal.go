// Package testutil provides shared testing utilities, mocks, and fixtures
// for use across the convoy test suite.
package testutil

import (
	"context"
	"sync"

	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// MockTerminal is a terminal handler with configurable behavior.
// It records every request it receives and answers with the configured
// responses, in order, repeating the last one once they run out.
//
// Error responses (status 0 or >= 400) are delivered on the error channel,
// like a real network exchange. A gated terminal holds every answer until
// Release is called.
type MockTerminal struct {
	mu sync.RWMutex

	// Behavior control
	responses []*types.Response
	err       error
	respond   func(req *types.Request) (*types.Response, error)
	gate      chan struct{}
	released  bool

	// Call tracking
	requests []*types.Request
	handled  chan struct{}
}

// NewMockTerminal creates a terminal that answers with responses in order.
func NewMockTerminal(responses ...*types.Response) *MockTerminal {
	return &MockTerminal{
		responses: responses,
		handled:   make(chan struct{}, 64),
	}
}

// NewGatedTerminal creates a terminal whose answers are held until Release.
func NewGatedTerminal(responses ...*types.Response) *MockTerminal {
	m := NewMockTerminal(responses...)
	m.gate = make(chan struct{})
	return m
}

// SetError makes every call fail with err.
func (m *MockTerminal) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetRespondFunc computes the answer from the request.
func (m *MockTerminal) SetRespondFunc(fn func(req *types.Request) (*types.Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

// Release lets held answers through. It is safe to call more than once.
func (m *MockTerminal) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil && !m.released {
		m.released = true
		close(m.gate)
	}
}

// Handled is signalled once for each request the terminal receives.
func (m *MockTerminal) Handled() <-chan struct{} {
	return m.handled
}

// CallCount returns the number of requests the terminal received.
func (m *MockTerminal) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns the requests the terminal received, in order.
func (m *MockTerminal) Requests() []*types.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*types.Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or nil.
func (m *MockTerminal) LastRequest() *types.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Handle implements pipeline.TerminalHandler.
func (m *MockTerminal) Handle(ctx context.Context, req *types.Request) stream.Stream[*types.Response] {
	m.mu.Lock()
	call := len(m.requests)
	m.requests = append(m.requests, req)
	gate := m.gate
	m.mu.Unlock()

	select {
	case m.handled <- struct{}{}:
	default:
	}

	if gate == nil {
		resp, err := m.answer(req, call)
		if err != nil {
			return stream.Fail[*types.Response](err)
		}
		return stream.Of(resp)
	}

	return stream.FromFuture(ctx, func(ctx context.Context) (*types.Response, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return m.answer(req, call)
	})
}

func (m *MockTerminal) answer(req *types.Request, call int) (*types.Response, error) {
	m.mu.RLock()
	respond, err := m.respond, m.err
	var resp *types.Response
	if n := len(m.responses); n > 0 {
		resp = m.responses[min(call, n-1)]
	}
	m.mu.RUnlock()

	switch {
	case err != nil:
		return nil, err
	case respond != nil:
		resp, err = respond(req)
		if err != nil {
			return nil, err
		}
	case resp == nil:
		resp = types.NewResponse(nil)
	}

	resp = resp.Clone()
	if resp.IsError() {
		return nil, resp
	}
	return resp, nil
}
