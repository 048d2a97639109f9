// Package requestid provides a plugin that tags every request with a unique
// identifier header.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "request_id"

// DefaultHeader is the header the identifier is written to
const DefaultHeader = "X-Request-ID"

// Config holds the configuration for the request ID plugin
type Config struct {
	// Header defaults to DefaultHeader
	Header string

	// Generate produces identifiers. Defaults to random UUIDs.
	Generate func() string

	// Condition selects the requests to tag. Defaults to every request.
	Condition pipeline.Condition
}

// Plugin is the request ID plugin
type Plugin struct {
	header    string
	generate  func() string
	condition pipeline.Condition
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a request ID plugin
func New(cfg Config) *Plugin {
	p := &Plugin{
		header:    cfg.Header,
		generate:  cfg.Generate,
		condition: cfg.Condition,
	}
	if p.header == "" {
		p.header = DefaultHeader
	}
	if p.generate == nil {
		p.generate = uuid.NewString
	}
	return p
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// Handle implements pipeline.Handler. Requests that already carry the header
// keep their identifier.
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	req := args.Request
	if _, ok := req.Header(p.header); !ok {
		req = req.WithHeader(p.header, p.generate())
	}
	return stream.Streaming(args.Next(ctx, req))
}
