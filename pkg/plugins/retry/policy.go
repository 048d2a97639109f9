// Package retry provides a plugin that re-runs the rest of the pipeline when
// it fails with a transient error.
//
// Only failures delivered as a *types.Response are considered. By default,
// server errors (5xx) and exchanges that never reached the server (status 0)
// are retried with exponential backoff; a Retry-After header takes precedence
// over the computed delay.
package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Policy defines the configuration for retry behavior
type Policy struct {
	// MaxRetries is the maximum number of retry attempts (0 means no retries)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`

	// MaxDelay caps every delay, including one requested by Retry-After
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Multiplier is the factor by which the delay increases between retries
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// Jitter adds randomness to delays to prevent thundering herd
	// Range: 0.0 (no jitter) to 1.0 (full jitter)
	Jitter float64 `json:"jitter" yaml:"jitter"`

	// ShouldRetry decides whether a failed response is retried.
	// Defaults to (*types.Response).IsServerOrUnknownError.
	ShouldRetry func(resp *types.Response) bool `json:"-" yaml:"-"`
}

// DefaultPolicy returns a retry policy with sensible defaults
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1, // 10% jitter
	}
}

// NoRetryPolicy returns a policy that never retries
func NoRetryPolicy() *Policy {
	return &Policy{Multiplier: 1.0}
}

// Retryable reports whether resp may be retried after attempt failed attempts
func (p *Policy) Retryable(resp *types.Response, attempt int) bool {
	if resp == nil || attempt >= p.MaxRetries {
		return false
	}
	if p.ShouldRetry != nil {
		return p.ShouldRetry(resp)
	}
	return resp.IsServerOrUnknownError()
}

// Clone creates a copy of the retry policy
func (p *Policy) Clone() *Policy {
	clone := *p
	return &clone
}

// WithMaxRetries returns a new policy with updated MaxRetries
func (p *Policy) WithMaxRetries(maxRetries int) *Policy {
	clone := p.Clone()
	clone.MaxRetries = maxRetries
	return clone
}

// WithInitialDelay returns a new policy with updated InitialDelay
func (p *Policy) WithInitialDelay(delay time.Duration) *Policy {
	clone := p.Clone()
	clone.InitialDelay = delay
	return clone
}

// WithMaxDelay returns a new policy with updated MaxDelay
func (p *Policy) WithMaxDelay(delay time.Duration) *Policy {
	clone := p.Clone()
	clone.MaxDelay = delay
	return clone
}

// Common retryable HTTP status codes
var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:               true,
	http.StatusInternalServerError:           true,
	http.StatusBadGateway:                    true,
	http.StatusServiceUnavailable:            true,
	http.StatusGatewayTimeout:                true,
	http.StatusInsufficientStorage:           true,
	http.StatusNetworkAuthenticationRequired: true,
}

// IsRetryableStatusCode checks if an HTTP status code is in the common
// retryable set (429, 500, 502, 503, 504, 507, 511)
func IsRetryableStatusCode(statusCode int) bool {
	return retryableStatusCodes[statusCode]
}

// OnStatus returns a ShouldRetry function that retries the given statuses and
// exchanges that never reached the server. Without statuses, the common
// retryable set is used.
func OnStatus(statuses ...int) func(resp *types.Response) bool {
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return func(resp *types.Response) bool {
		if resp.Status == types.StatusUnknown {
			return true
		}
		if len(set) == 0 {
			return IsRetryableStatusCode(resp.Status)
		}
		return set[resp.Status]
	}
}

// ParseRetryAfter parses the Retry-After header of a response.
// It supports both delay-seconds (integer) and HTTP-date formats.
// Returns the duration to wait before retrying, or 0 if not present/invalid.
func ParseRetryAfter(resp *types.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter, ok := resp.Header("Retry-After")
	if !ok {
		return 0
	}
	retryAfter = strings.TrimSpace(retryAfter)

	// Try to parse as delay-seconds (integer)
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	// Try to parse as HTTP-date
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
