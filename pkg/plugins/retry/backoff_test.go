package retry

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cecil-the-coder/convoy/pkg/types"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	policy := &Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.0, // No jitter for predictable testing
	}

	backoff := NewExponentialBackoff(policy).WithJitterType(NoJitter)

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first retry", 0, 1 * time.Second},
		{"second retry", 1, 2 * time.Second},
		{"third retry", 2, 4 * time.Second},
		{"fourth retry", 3, 8 * time.Second},
		{"fifth retry", 4, 16 * time.Second},
		{"sixth retry capped", 5, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt, nil))
		})
	}
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	policy := &Policy{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0, Jitter: 0.5}

	tests := []struct {
		name       string
		jitterType JitterType
		min, max   time.Duration
	}{
		{"none", NoJitter, 2 * time.Second, 2 * time.Second},
		{"full", FullJitter, 0, 2 * time.Second},
		{"equal", EqualJitter, time.Second, 2 * time.Second},
		{"proportional", ProportionalJitter, 1500 * time.Millisecond, 2500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backoff := NewExponentialBackoff(policy).WithJitterType(tt.jitterType)
			for i := 0; i < 50; i++ {
				d := backoff.NextDelay(1, nil)
				assert.GreaterOrEqual(t, d, tt.min)
				assert.LessOrEqual(t, d, tt.max)
			}
		})
	}
}

func TestExponentialBackoff_RetryAfter(t *testing.T) {
	resp := types.NewStatusResponse(http.StatusTooManyRequests, nil)
	resp.Headers["Retry-After"] = "3"

	uncapped := NewExponentialBackoff(&Policy{InitialDelay: time.Millisecond, Multiplier: 2})
	assert.Equal(t, 3*time.Second, uncapped.NextDelay(0, resp))

	capped := NewExponentialBackoff(&Policy{InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2})
	assert.Equal(t, time.Second, capped.NextDelay(0, resp))
}

func TestConstantBackoff(t *testing.T) {
	backoff := NewConstantBackoff(250 * time.Millisecond)

	assert.Equal(t, 250*time.Millisecond, backoff.NextDelay(0, nil))
	assert.Equal(t, 250*time.Millisecond, backoff.NextDelay(7, types.NewStatusResponse(http.StatusBadGateway, nil)))

	resp := types.NewStatusResponse(http.StatusServiceUnavailable, nil)
	resp.Headers["retry-after"] = "2"
	assert.Equal(t, 2*time.Second, backoff.NextDelay(0, resp))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "120", 2 * time.Minute},
		{"zero", "0", 0},
		{"negative", "-5", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := types.NewStatusResponse(http.StatusServiceUnavailable, nil)
			resp.Headers["Retry-After"] = tt.value
			assert.Equal(t, tt.want, ParseRetryAfter(resp, now))
		})
	}

	assert.Zero(t, ParseRetryAfter(types.NewStatusResponse(http.StatusServiceUnavailable, nil), now))
	assert.Zero(t, ParseRetryAfter(nil, now))
}
