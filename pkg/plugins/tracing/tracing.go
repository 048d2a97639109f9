// Package tracing provides a plugin that records an OpenTelemetry client span
// for every exchange and propagates the trace context in request headers.
package tracing

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "tracing"

// TracerName is the instrumentation scope of the spans
const TracerName = "github.com/cecil-the-coder/convoy"

// Attribute key constants for consistent span attributes.
const (
	AttrHTTPMethod    = "http.request.method"
	AttrHTTPStatus    = "http.response.status_code"
	AttrURL           = "url.full"
	AttrServerAddress = "server.address"
	AttrSource        = "convoy.response.source"
	AttrResponses     = "convoy.responses"
	AttrErrorType     = "error.type"
)

// Config holds the configuration for the tracing plugin
type Config struct {
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider

	// Propagator defaults to W3C trace context and baggage
	Propagator propagation.TextMapPropagator

	// Condition selects the requests to trace. Defaults to every request.
	Condition pipeline.Condition
}

// Plugin is the tracing plugin
type Plugin struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	condition  pipeline.Condition
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a tracing plugin
func New(cfg Config) *Plugin {
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	propagator := cfg.Propagator
	if propagator == nil {
		propagator = propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)
	}
	return &Plugin{
		tracer:     provider.Tracer(TracerName),
		propagator: propagator,
		condition:  cfg.Condition,
	}
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	return stream.Streaming(stream.Defer(func() stream.Stream[*types.Response] {
		req := args.Request
		attrs := []attribute.KeyValue{
			attribute.String(AttrHTTPMethod, string(req.Method)),
			attribute.String(AttrURL, req.URL),
		}
		if u, err := url.Parse(req.URL); err == nil && u.Host != "" {
			attrs = append(attrs, attribute.String(AttrServerAddress, u.Hostname()))
		}

		spanCtx, span := p.tracer.Start(ctx, "HTTP "+string(req.Method),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)

		carrier := propagation.MapCarrier{}
		p.propagator.Inject(spanCtx, carrier)
		if len(carrier) > 0 {
			req = req.WithHeaders(carrier)
		}

		var count atomic.Int64
		responses := stream.Tap(args.Next(spanCtx, req), func(resp *types.Response) {
			count.Add(1)
			span.SetAttributes(attribute.Int(AttrHTTPStatus, resp.Status))
			span.AddEvent("response", trace.WithAttributes(
				attribute.Int(AttrHTTPStatus, resp.Status),
				attribute.String(AttrSource, resp.Source()),
			))
		})

		return stream.Finally(responses, func(err error) {
			defer span.End()
			span.SetAttributes(attribute.Int64(AttrResponses, count.Load()))
			end(span, err)
		})
	}))
}

func end(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if errors.Is(err, stream.ErrClosed) || errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.String(AttrErrorType, "cancelled"))
		return
	}

	if resp, ok := types.AsResponse(err); ok {
		span.SetAttributes(attribute.Int(AttrHTTPStatus, resp.Status))
		errorType := strconv.Itoa(resp.Status)
		if resp.Status == types.StatusUnknown {
			errorType = resp.StatusText
		}
		span.SetAttributes(attribute.String(AttrErrorType, errorType))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
