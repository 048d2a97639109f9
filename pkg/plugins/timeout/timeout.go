// Package timeout provides a plugin that bounds how long the rest of the
// pipeline may take to complete.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "timeout"

// StatusText is the status text of the response a timed out request fails with
const StatusText = "Timeout"

// Config holds the configuration for the timeout plugin
type Config struct {
	// Timeout bounds the downstream exchange, from the first pull to
	// completion. Required.
	Timeout time.Duration

	// Condition selects the requests to bound. Defaults to every request.
	Condition pipeline.Condition
}

// Plugin is the timeout plugin
type Plugin struct {
	timeout   time.Duration
	condition pipeline.Condition
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a timeout plugin
func New(cfg Config) (*Plugin, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout: duration must be positive, got %s", cfg.Timeout)
	}
	return &Plugin{timeout: cfg.Timeout, condition: cfg.Condition}, nil
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// NewTimeoutResponse creates the status 0 response a timed out request fails
// with
func NewTimeoutResponse(d time.Duration) *types.Response {
	resp := types.NewUnknownErrorResponse(fmt.Errorf("request timed out after %s", d))
	resp.StatusText = StatusText
	return resp
}

// IsTimeout reports whether err is a timeout raised by this plugin
func IsTimeout(err error) bool {
	resp, ok := types.AsResponse(err)
	return ok && resp.Status == types.StatusUnknown && resp.StatusText == StatusText
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	return stream.Streaming(stream.Defer(func() stream.Stream[*types.Response] {
		bounded, cancel := context.WithTimeout(ctx, p.timeout)

		responses := stream.Bind(bounded, args.Next(bounded, args.Request))
		responses = stream.Finally(responses, func(error) { cancel() })

		return stream.Catch(responses, func(err error) stream.Stream[*types.Response] {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return stream.Fail[*types.Response](NewTimeoutResponse(p.timeout))
			}
			return stream.Fail[*types.Response](err)
		})
	}))
}
