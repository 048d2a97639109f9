package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Info contains the rate limit state a server reported for a host
type Info struct {
	// Host is the host the limits apply to
	Host string `json:"host"`

	// Timestamp is when this rate limit information was captured
	Timestamp time.Time `json:"timestamp"`

	// RequestsLimit is the maximum number of requests allowed in the current window
	RequestsLimit int `json:"requests_limit"`

	// RequestsRemaining is the number of requests remaining in the current window
	RequestsRemaining int `json:"requests_remaining"`

	// RequestsReset is when the request limit counter will reset
	RequestsReset time.Time `json:"requests_reset"`

	// RetryAfter indicates how long to wait before retrying (from Retry-After header)
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// ParseHeaders extracts rate limit information from the common
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers and,
// on 429 and 503 responses, from Retry-After. The reset header may hold either
// a delay in seconds or a Unix timestamp. It reports false when the response
// carries none of them.
func ParseHeaders(resp *types.Response, host string, now time.Time) (*Info, bool) {
	info := &Info{Host: host, Timestamp: now, RequestsRemaining: -1}
	found := false

	if v, ok := intHeader(resp, "X-RateLimit-Limit"); ok {
		info.RequestsLimit = v
		found = true
	}
	if v, ok := intHeader(resp, "X-RateLimit-Remaining"); ok {
		info.RequestsRemaining = v
		found = true
	}
	if v, ok := intHeader(resp, "X-RateLimit-Reset"); ok && v > 0 {
		info.RequestsReset = resetTime(v, now)
		found = true
	}

	if resp.Status == http.StatusTooManyRequests || resp.Status == http.StatusServiceUnavailable {
		if v, ok := intHeader(resp, "Retry-After"); ok && v > 0 {
			info.RetryAfter = time.Duration(v) * time.Second
			found = true
		} else if raw, ok := resp.Header("Retry-After"); ok {
			if t, err := http.ParseTime(raw); err == nil && t.After(now) {
				info.RetryAfter = t.Sub(now)
				found = true
			}
		}
	}
	return info, found
}

// resetTime interprets values that cannot be a delay as Unix timestamps
func resetTime(v int, now time.Time) time.Time {
	const maxDelaySeconds = 365 * 24 * 60 * 60
	if v > maxDelaySeconds {
		return time.Unix(int64(v), 0)
	}
	return now.Add(time.Duration(v) * time.Second)
}

func intHeader(resp *types.Response, name string) (int, bool) {
	raw, ok := resp.Header(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Tracker provides thread-safe tracking of server-reported rate limits per host
type Tracker struct {
	mu   sync.RWMutex
	info map[string]*Info
}

// NewTracker creates a new Tracker instance for tracking rate limits.
func NewTracker() *Tracker {
	return &Tracker{info: make(map[string]*Info)}
}

// Update records the rate limit information for a host
func (t *Tracker) Update(info *Info) {
	if info == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info[info.Host] = info
}

// Get retrieves the rate limit information for a host
func (t *Tracker) Get(host string) (*Info, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.info[host]
	return info, ok
}

// WaitTime returns how long a request to host should wait before it is sent
func (t *Tracker) WaitTime(host string, now time.Time) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.info[host]
	if !ok {
		return 0
	}

	var wait time.Duration
	if info.RetryAfter > 0 {
		wait = info.Timestamp.Add(info.RetryAfter).Sub(now)
	}
	if info.RequestsRemaining == 0 && !info.RequestsReset.IsZero() {
		if d := info.RequestsReset.Sub(now); d > wait {
			wait = d
		}
	}
	if wait < 0 {
		return 0
	}
	return wait
}
