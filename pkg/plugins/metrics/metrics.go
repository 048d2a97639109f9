// Package metrics provides a plugin that exports Prometheus metrics for
// every exchange going through a pipeline.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "metrics"

// Outcome label values that are not HTTP statuses
const (
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics holds the pipeline Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

// NewMetrics registers and returns the pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_requests_total",
			Help: "Total responses and failures emitted by the pipeline.",
		}, []string{"method", "status", "source"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "convoy_request_duration_seconds",
			Help:    "Time from the start of a request until its response stream ends.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "convoy_requests_in_flight",
			Help: "Requests whose response stream has not ended yet.",
		}),
	}
}

// Config holds the configuration for the metrics plugin
type Config struct {
	// Registerer defaults to prometheus.DefaultRegisterer. Ignored when
	// Metrics is set.
	Registerer prometheus.Registerer

	// Metrics shares already registered metrics between plugins
	Metrics *Metrics

	// Condition selects the requests to measure. Defaults to every request.
	Condition pipeline.Condition
}

// Plugin is the metrics plugin
type Plugin struct {
	metrics   *Metrics
	condition pipeline.Condition
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a metrics plugin. Registering the same metrics twice on one
// registerer panics, as promauto does.
func New(cfg Config) *Plugin {
	m := cfg.Metrics
	if m == nil {
		reg := cfg.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m = NewMetrics(reg)
	}
	return &Plugin{metrics: m, condition: cfg.Condition}
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// Metrics returns the metrics the plugin records to
func (p *Plugin) Metrics() *Metrics {
	return p.metrics
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	method := string(args.Request.Method)

	return stream.Streaming(stream.Defer(func() stream.Stream[*types.Response] {
		start := time.Now()
		p.metrics.InFlight.Inc()

		responses := stream.Tap(args.Next(ctx, args.Request), func(resp *types.Response) {
			p.metrics.RequestsTotal.WithLabelValues(method, strconv.Itoa(resp.Status), resp.Source()).Inc()
		})

		return stream.Finally(responses, func(err error) {
			p.metrics.InFlight.Dec()
			p.metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			if err == nil {
				return
			}

			status := StatusError
			switch resp, ok := types.AsResponse(err); {
			case ok:
				status = strconv.Itoa(resp.Status)
			case errors.Is(err, stream.ErrClosed), errors.Is(err, context.Canceled):
				status = StatusCancelled
			}
			p.metrics.RequestsTotal.WithLabelValues(method, status, "network").Inc()
		})
	}))
}
