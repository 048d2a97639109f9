// Package logger provides a plugin that logs every exchange going through a
// pipeline: the request, each response it produces and how it ended.
package logger

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "logger"

// Config holds the configuration for the logger plugin
type Config struct {
	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger

	// Level of request and response entries. Failures are logged at warn
	// level or above regardless. Defaults to info.
	Level *zerolog.Level

	// LogHeaders adds request headers to the request entry
	LogHeaders bool

	// Condition selects the requests to log. Defaults to every request.
	Condition pipeline.Condition
}

// Plugin is the logger plugin
type Plugin struct {
	logger     zerolog.Logger
	level      zerolog.Level
	logHeaders bool
	condition  pipeline.Condition
	now        func() time.Time
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a logger plugin
func New(cfg Config) *Plugin {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	p := &Plugin{
		logger:     logger.With().Str("component", "http").Logger(),
		level:      zerolog.InfoLevel,
		logHeaders: cfg.LogHeaders,
		condition:  cfg.Condition,
		now:        time.Now,
	}
	if cfg.Level != nil {
		p.level = *cfg.Level
	}
	return p
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	return stream.Streaming(stream.Defer(func() stream.Stream[*types.Response] {
		req := args.Request
		start := p.now()

		event := p.logger.WithLevel(p.level).
			Str("method", string(req.Method)).
			Str("url", req.URL)
		if len(req.Params) > 0 {
			event = event.Interface("params", req.Params)
		}
		if p.logHeaders {
			event = event.Interface("headers", req.Headers)
		}
		event.Msg("Request")

		var count atomic.Int32
		responses := stream.Tap(args.Next(ctx, req), func(resp *types.Response) {
			count.Add(1)
			p.logger.WithLevel(p.level).
				Str("method", string(req.Method)).
				Str("url", req.URL).
				Int("status", resp.Status).
				Str("source", resp.Source()).
				Int("size", len(resp.Body)).
				Dur("latency", p.now().Sub(start)).
				Msg("Response")
		})

		return stream.Finally(responses, func(err error) {
			latency := p.now().Sub(start)
			switch {
			case err == nil:
				p.logger.Debug().
					Str("url", req.URL).
					Int32("responses", count.Load()).
					Dur("latency", latency).
					Msg("Request completed")
			case errors.Is(err, stream.ErrClosed), errors.Is(err, context.Canceled):
				p.logger.Debug().
					Str("url", req.URL).
					Int32("responses", count.Load()).
					Dur("latency", latency).
					Msg("Request cancelled")
			default:
				p.logFailure(req, err, latency)
			}
		})
	}))
}

func (p *Plugin) logFailure(req *types.Request, err error, latency time.Duration) {
	resp, ok := types.AsResponse(err)
	if !ok {
		p.logger.Error().Err(err).
			Str("method", string(req.Method)).
			Str("url", req.URL).
			Dur("latency", latency).
			Msg("Request failed")
		return
	}

	event := p.logger.Warn()
	if resp.IsServerOrUnknownError() {
		event = p.logger.Error()
	}
	event.
		Str("method", string(req.Method)).
		Str("url", req.URL).
		Int("status", resp.Status).
		Str("status_text", resp.StatusText).
		Dur("latency", latency).
		Msg("Request failed")
}
