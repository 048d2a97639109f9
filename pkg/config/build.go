package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/cecil-the-coder/convoy/pkg/conditions"
	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/plugins/auth"
	"github.com/cecil-the-coder/convoy/pkg/plugins/cache"
	"github.com/cecil-the-coder/convoy/pkg/plugins/cache/store"
	"github.com/cecil-the-coder/convoy/pkg/plugins/logger"
	"github.com/cecil-the-coder/convoy/pkg/plugins/metrics"
	"github.com/cecil-the-coder/convoy/pkg/plugins/ratelimit"
	"github.com/cecil-the-coder/convoy/pkg/plugins/requestid"
	"github.com/cecil-the-coder/convoy/pkg/plugins/retry"
	"github.com/cecil-the-coder/convoy/pkg/plugins/timeout"
	"github.com/cecil-the-coder/convoy/pkg/plugins/tracing"
	"github.com/cecil-the-coder/convoy/pkg/transport"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Deps supplies the shared services plugins are built with. Zero values fall
// back to the global logger, registerer and tracer provider.
type Deps struct {
	Logger         *zerolog.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider

	// Context is used by OAuth2 token sources to fetch tokens. Defaults to
	// context.Background.
	Context context.Context
}

// Runtime is a built pipeline definition
type Runtime struct {
	Pipeline *pipeline.Pipeline
	Client   *transport.Client
	Mode     transport.Mode

	closers []io.Closer
}

// HTTPClient returns an *http.Client sending requests through the pipeline in
// the configured mode
func (r *Runtime) HTTPClient() *http.Client {
	return r.Client.HTTPClient(r.Mode)
}

// Close releases resources held by plugins, such as SQLite cache stores
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build validates cfg and wires every entry into a plugin, in order
func Build(cfg *Config, deps Deps) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Logger == nil {
		l := log.Logger
		deps.Logger = &l
	}

	rt := &Runtime{}
	rt.Mode, _ = transport.ParseMode(cfg.Mode)

	// One set of collectors per registerer.
	var shared *metrics.Metrics

	plugins := make([]pipeline.Plugin, 0, len(cfg.Plugins))
	for i, pc := range cfg.Plugins {
		plugin, err := rt.buildPlugin(pc, deps, &shared)
		if err != nil {
			_ = rt.Close()
			return nil, &pipeline.ConfigError{Index: i, Plugin: pc.Type, Err: err}
		}
		if pc.Name != "" {
			plugin.Name = pc.Name
		}
		plugins = append(plugins, plugin)
	}

	p, err := pipeline.New(pipeline.Config{Plugins: plugins})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Pipeline = p
	rt.Client = transport.NewClient(p, transport.NewHTTPHandler(cfg.Transport))

	deps.Logger.Debug().
		Int("plugins", p.Len()).
		Str("mode", cfg.Mode).
		Msg("Pipeline built")
	return rt, nil
}

func (rt *Runtime) buildPlugin(pc PluginConfig, deps Deps, shared **metrics.Metrics) (pipeline.Plugin, error) {
	cond, err := compileWhen(pc.When)
	if err != nil {
		return pipeline.Plugin{}, err
	}

	switch pc.Type {
	case TypeLogger:
		lc := logger.Config{Logger: deps.Logger, Condition: cond}
		if pc.Logger != nil {
			lc.LogHeaders = pc.Logger.Headers
			if pc.Logger.Level != "" {
				level, err := zerolog.ParseLevel(pc.Logger.Level)
				if err != nil {
					return pipeline.Plugin{}, err
				}
				lc.Level = &level
			}
		}
		return logger.New(lc).AsPlugin(), nil

	case TypeRequestID:
		rc := requestid.Config{Condition: cond}
		if pc.RequestID != nil {
			rc.Header = pc.RequestID.Header
		}
		return requestid.New(rc).AsPlugin(), nil

	case TypeCache:
		cc := cache.Config{Logger: deps.Logger, Condition: cond}
		if pc.Cache != nil {
			s, err := rt.openStore(pc.Cache)
			if err != nil {
				return pipeline.Plugin{}, err
			}
			cc.Store = s
			cc.AddCacheMetadata = pc.Cache.AddCacheMetadata
			cc.Deduplicate = pc.Cache.Deduplicate
		}
		return cache.New(cc).AsPlugin(), nil

	case TypeRetry:
		rc := retry.Config{Logger: deps.Logger, Condition: cond}
		if pc.Retry != nil {
			rc.Policy = retryPolicy(pc.Retry)
		}
		return retry.New(rc).AsPlugin(), nil

	case TypeRateLimit:
		return ratelimit.New(ratelimit.Config{
			RequestsPerSecond:   pc.RateLimit.RequestsPerSecond,
			Burst:               pc.RateLimit.Burst,
			RespectServerLimits: pc.RateLimit.RespectServerLimits,
			Condition:           cond,
			Logger:              deps.Logger,
		}).AsPlugin(), nil

	case TypeAuth:
		ac := auth.Config{Condition: cond, Logger: deps.Logger}
		switch {
		case pc.Auth.Token != "":
			ac.TokenSource = auth.StaticToken(pc.Auth.Token)
		case len(pc.Auth.Tokens) > 0:
			pool, err := auth.NewKeyPool(pc.Auth.Tokens...)
			if err != nil {
				return pipeline.Plugin{}, err
			}
			ac.TokenSource = pool
		default:
			ac.TokenSource = auth.ClientCredentials(deps.Context,
				pc.Auth.ClientID, pc.Auth.ClientSecret, pc.Auth.TokenURL, pc.Auth.Scopes...)
		}
		p, err := auth.New(ac)
		if err != nil {
			return pipeline.Plugin{}, err
		}
		return p.AsPlugin(), nil

	case TypeTimeout:
		p, err := timeout.New(timeout.Config{Timeout: pc.Timeout, Condition: cond})
		if err != nil {
			return pipeline.Plugin{}, err
		}
		return p.AsPlugin(), nil

	case TypeMetrics:
		if *shared == nil {
			reg := deps.Registerer
			if reg == nil {
				reg = prometheus.DefaultRegisterer
			}
			*shared = metrics.NewMetrics(reg)
		}
		return metrics.New(metrics.Config{Metrics: *shared, Condition: cond}).AsPlugin(), nil

	case TypeTracing:
		return tracing.New(tracing.Config{
			TracerProvider: deps.TracerProvider,
			Condition:      cond,
		}).AsPlugin(), nil
	}
	return pipeline.Plugin{}, fmt.Errorf("%w %q", ErrUnknownPlugin, pc.Type)
}

func (rt *Runtime) openStore(cc *CacheConfig) (store.Adapter, error) {
	switch cc.Store {
	case StoreSQLite:
		s, err := store.NewSQLite(cc.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, s)
		return s, nil
	default:
		size := cc.Size
		if size == 0 {
			size = store.DefaultMemorySize
		}
		return store.NewMemory(size)
	}
}

func retryPolicy(rc *RetryConfig) *retry.Policy {
	policy := retry.DefaultPolicy()
	if rc.MaxRetries > 0 {
		policy = policy.WithMaxRetries(rc.MaxRetries)
	}
	if rc.InitialDelay > 0 {
		policy = policy.WithInitialDelay(rc.InitialDelay)
	}
	if rc.MaxDelay > 0 {
		policy = policy.WithMaxDelay(rc.MaxDelay)
	}
	if rc.Multiplier > 0 {
		policy.Multiplier = rc.Multiplier
	}
	if rc.Jitter > 0 {
		policy.Jitter = rc.Jitter
	}
	if len(rc.Statuses) > 0 {
		policy.ShouldRetry = retry.OnStatus(rc.Statuses...)
	}
	return policy
}

// compileWhen turns a when clause into a condition. A nil result keeps the
// plugin's default condition.
func compileWhen(w *WhenConfig) (pipeline.Condition, error) {
	if w == nil {
		return nil, nil
	}
	var conds []pipeline.Condition
	if len(w.Methods) > 0 {
		methods := make([]types.Method, 0, len(w.Methods))
		for _, m := range w.Methods {
			method, err := types.ParseMethod(m)
			if err != nil {
				return nil, err
			}
			methods = append(methods, method)
		}
		conds = append(conds, conditions.MatchMethod(methods...))
	}
	if len(w.Origins) > 0 {
		conds = append(conds, conditions.MatchOrigin(w.Origins...))
	}
	if len(w.Paths) > 0 {
		conds = append(conds, conditions.MatchPath(w.Paths...))
	}
	switch len(conds) {
	case 0:
		return nil, nil
	case 1:
		return conds[0], nil
	default:
		return conditions.All(conds...), nil
	}
}
