// Package ratelimit provides a plugin that paces requests before they leave
// the pipeline.
//
// Requests wait on a client-side token bucket and, optionally, on the limits
// servers report through X-RateLimit-* and Retry-After headers.
package ratelimit

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "rate_limit"

// Config holds the configuration for the rate limit plugin
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero disables the client-side
	// limit unless Limiter is set.
	RequestsPerSecond float64

	// Burst is the bucket size. Defaults to 1.
	Burst int

	// Limiter overrides RequestsPerSecond and Burst
	Limiter *rate.Limiter

	// RespectServerLimits delays requests to hosts that reported an exhausted
	// quota or asked to retry later
	RespectServerLimits bool

	// Condition selects the requests to pace. Defaults to every request.
	Condition pipeline.Condition

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger
}

// Plugin is the rate limit plugin
type Plugin struct {
	limiter   *rate.Limiter
	tracker   *Tracker
	condition pipeline.Condition
	now       func() time.Time
	logger    zerolog.Logger
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a rate limit plugin
func New(cfg Config) *Plugin {
	p := &Plugin{
		limiter:   cfg.Limiter,
		condition: cfg.Condition,
		now:       time.Now,
	}
	if p.limiter == nil && cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.RespectServerLimits {
		p.tracker = NewTracker()
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

// Tracker returns the server limit tracker, or nil when server limits are
// not respected
func (p *Plugin) Tracker() *Tracker {
	return p.tracker
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	host := hostOf(args.Request.URL)

	admitted := stream.FromFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.wait(ctx, host)
	})

	return stream.Streaming(stream.Then(admitted, func(struct{}) stream.Stream[*types.Response] {
		responses := args.Next(ctx, args.Request)
		if p.tracker == nil {
			return responses
		}
		responses = stream.Tap(responses, func(resp *types.Response) { p.record(host, resp) })
		return stream.Catch(responses, func(err error) stream.Stream[*types.Response] {
			if resp, ok := types.AsResponse(err); ok {
				p.record(host, resp)
			}
			return stream.Fail[*types.Response](err)
		})
	}))
}

func (p *Plugin) wait(ctx context.Context, host string) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if p.tracker == nil {
		return nil
	}

	delay := p.tracker.WaitTime(host, p.now())
	if delay <= 0 {
		return nil
	}
	p.logger.Debug().Str("host", host).Dur("delay", delay).Msg("Waiting for server rate limit")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plugin) record(host string, resp *types.Response) {
	if resp.CacheMetadata != nil {
		return
	}
	if info, ok := ParseHeaders(resp, host, p.now()); ok {
		p.tracker.Update(info)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
