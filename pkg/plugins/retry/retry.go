package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "retry"

// Config holds the configuration for the retry plugin
type Config struct {
	// Policy defaults to DefaultPolicy
	Policy *Policy

	// Backoff defaults to an exponential backoff over Policy
	Backoff Backoff

	// Condition selects the requests to retry. Defaults to every request.
	Condition pipeline.Condition

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger
}

// Plugin is the retry plugin
type Plugin struct {
	policy    *Policy
	backoff   Backoff
	condition pipeline.Condition
	logger    zerolog.Logger
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a retry plugin
func New(cfg Config) *Plugin {
	p := &Plugin{
		policy:    cfg.Policy,
		backoff:   cfg.Backoff,
		condition: cfg.Condition,
	}
	if p.policy == nil {
		p.policy = DefaultPolicy()
	}
	if p.backoff == nil {
		p.backoff = NewExponentialBackoff(p.policy)
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	p.logger = logger.With().Str("component", Name).Logger()
	return p
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	return stream.Streaming(p.attempt(ctx, args, 0))
}

// attempt runs the rest of the pipeline once. A retryable failure schedules
// the next attempt; anything else propagates unchanged.
func (p *Plugin) attempt(ctx context.Context, args pipeline.HandlerArgs, attempt int) stream.Stream[*types.Response] {
	run := stream.Defer(func() stream.Stream[*types.Response] {
		return args.Next(ctx, args.Request)
	})
	return stream.Catch(run, func(err error) stream.Stream[*types.Response] {
		resp, ok := types.AsResponse(err)
		if !ok || !p.policy.Retryable(resp, attempt) {
			if ok && attempt > 0 {
				p.logger.Warn().
					Str("url", args.Request.URL).
					Int("status", resp.Status).
					Int("attempts", attempt+1).
					Msg("Giving up")
			}
			return stream.Fail[*types.Response](err)
		}

		delay := p.backoff.NextDelay(attempt, resp)
		p.logger.Debug().
			Str("url", args.Request.URL).
			Int("status", resp.Status).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying request")

		return stream.Then(sleep(ctx, delay), func(struct{}) stream.Stream[*types.Response] {
			return p.attempt(ctx, args, attempt+1)
		})
	})
}

// sleep emits once after d unless ctx is done first
func sleep(ctx context.Context, d time.Duration) stream.Stream[struct{}] {
	return stream.FromFuture(ctx, func(ctx context.Context) (struct{}, error) {
		if d <= 0 {
			return struct{}{}, ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	})
}
