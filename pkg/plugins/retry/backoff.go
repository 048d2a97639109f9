package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cecil-the-coder/convoy/pkg/types"
)

// JitterType defines different types of jitter strategies
type JitterType int

const (
	// NoJitter applies no randomization to the delay
	NoJitter JitterType = iota

	// FullJitter randomizes the delay between 0 and the calculated delay
	// delay = random(0, calculatedDelay)
	FullJitter

	// EqualJitter splits the delay evenly between fixed and random components
	// delay = calculatedDelay/2 + random(0, calculatedDelay/2)
	EqualJitter

	// ProportionalJitter spreads the delay by the policy's Jitter factor
	// around the calculated delay
	ProportionalJitter
)

// Backoff computes the delay before a retry. Implementations must be safe for
// concurrent use; one plugin serves every request of a pipeline.
type Backoff interface {
	// NextDelay returns the delay before retry number attempt+1 of a request
	// that failed with resp
	NextDelay(attempt int, resp *types.Response) time.Duration
}

// ExponentialBackoff implements exponential backoff with configurable jitter
type ExponentialBackoff struct {
	policy     *Policy
	jitterType JitterType
	now        func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewExponentialBackoff creates a new exponential backoff strategy
func NewExponentialBackoff(policy *Policy) *ExponentialBackoff {
	return &ExponentialBackoff{
		policy:     policy,
		jitterType: ProportionalJitter,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // G404: math/rand is sufficient for jitter
	}
}

// WithJitterType sets the jitter type for the strategy
func (b *ExponentialBackoff) WithJitterType(jitterType JitterType) *ExponentialBackoff {
	b.jitterType = jitterType
	return b
}

// NextDelay calculates the next delay using exponential backoff
func (b *ExponentialBackoff) NextDelay(attempt int, resp *types.Response) time.Duration {
	if retryAfter := ParseRetryAfter(resp, b.now()); retryAfter > 0 {
		return b.cap(retryAfter)
	}

	// initialDelay * multiplier^attempt
	delay := b.policy.InitialDelay
	if attempt > 0 {
		multiplier := math.Pow(b.policy.Multiplier, float64(attempt))
		delay = time.Duration(float64(b.policy.InitialDelay) * multiplier)
	}

	return b.cap(b.applyJitter(b.cap(delay)))
}

func (b *ExponentialBackoff) cap(delay time.Duration) time.Duration {
	if b.policy.MaxDelay > 0 && delay > b.policy.MaxDelay {
		return b.policy.MaxDelay
	}
	return delay
}

// applyJitter applies the configured jitter type to the delay
func (b *ExponentialBackoff) applyJitter(delay time.Duration) time.Duration {
	if b.policy.Jitter == 0 || delay <= 0 {
		return delay
	}

	b.mu.Lock()
	r := b.rng.Float64()
	b.mu.Unlock()

	switch b.jitterType {
	case NoJitter:
		return delay

	case FullJitter:
		return time.Duration(r * float64(delay))

	case EqualJitter:
		halfDelay := delay / 2
		return halfDelay + time.Duration(r*float64(delay-halfDelay))

	default:
		jitterAmount := float64(delay) * b.policy.Jitter
		return delay - time.Duration(jitterAmount/2) + time.Duration(r*jitterAmount)
	}
}

// ConstantBackoff implements a constant delay between retries
type ConstantBackoff struct {
	delay time.Duration
}

// NewConstantBackoff creates a new constant backoff strategy
func NewConstantBackoff(delay time.Duration) *ConstantBackoff {
	return &ConstantBackoff{delay: delay}
}

// NextDelay returns a constant delay regardless of attempt number, unless
// the response asks for a specific one
func (b *ConstantBackoff) NextDelay(attempt int, resp *types.Response) time.Duration {
	if retryAfter := ParseRetryAfter(resp, time.Now()); retryAfter > 0 {
		return retryAfter
	}
	return b.delay
}
