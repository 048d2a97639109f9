package auth

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoAvailableKey is returned by a KeyPool whose keys are all backing off
var ErrNoAvailableKey = errors.New("auth: all keys are backing off")

// Reporter receives the outcome of requests made with a token. Token sources
// implementing it are told which tokens the server rejected.
type Reporter interface {
	ReportSuccess(accessToken string)
	ReportFailure(accessToken string)
}

// KeyPool is a token source that rotates over static API keys round-robin.
// A key the server rejects backs off exponentially (1s, 2s, 4s, up to a
// minute) and is skipped until its backoff expires.
type KeyPool struct {
	keys   []string
	next   atomic.Uint32
	now    func() time.Time
	mu     sync.RWMutex
	health map[string]*keyHealth
}

type keyHealth struct {
	failures     int
	backoffUntil time.Time
}

var (
	_ oauth2.TokenSource = (*KeyPool)(nil)
	_ Reporter           = (*KeyPool)(nil)
)

// NewKeyPool creates a pool over keys
func NewKeyPool(keys ...string) (*KeyPool, error) {
	if len(keys) == 0 {
		return nil, errors.New("auth: key pool needs at least one key")
	}
	pool := &KeyPool{
		keys:   append([]string(nil), keys...),
		now:    time.Now,
		health: make(map[string]*keyHealth, len(keys)),
	}
	for _, key := range keys {
		pool.health[key] = &keyHealth{}
	}
	return pool, nil
}

// Token returns the next available key as a bearer token
func (p *KeyPool) Token() (*oauth2.Token, error) {
	start := int(p.next.Add(1)-1) % len(p.keys)
	now := p.now()

	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := range p.keys {
		key := p.keys[(start+i)%len(p.keys)]
		if now.Before(p.health[key].backoffUntil) {
			continue
		}
		return &oauth2.Token{AccessToken: key, TokenType: "Bearer"}, nil
	}
	return nil, fmt.Errorf("%w (%d keys)", ErrNoAvailableKey, len(p.keys))
}

// ReportSuccess clears the backoff of key
func (p *KeyPool) ReportSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.health[key]; ok {
		h.failures = 0
		h.backoffUntil = time.Time{}
	}
}

// ReportFailure puts key into backoff
func (p *KeyPool) ReportFailure(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.health[key]
	if !ok {
		return
	}
	h.failures++
	backoff := time.Second << min(h.failures-1, 6)
	if backoff > time.Minute {
		backoff = time.Minute
	}
	h.backoffUntil = p.now().Add(backoff)
}

// Available returns the number of keys not backing off
func (p *KeyPool) Available() int {
	now := p.now()
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, h := range p.health {
		if !now.Before(h.backoffUntil) {
			n++
		}
	}
	return n
}
