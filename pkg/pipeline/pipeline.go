package pipeline

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Config holds the configuration for a Pipeline
type Config struct {
	// Plugins run in order for every request
	Plugins []Plugin

	// Logger receives debug events about plugin dispatch. Defaults to the
	// global zerolog logger.
	Logger *zerolog.Logger
}

// Pipeline dispatches requests through a fixed list of plugins
type Pipeline struct {
	plugins []Plugin
	logger  zerolog.Logger
}

// New validates the plugin list and returns a ready Pipeline. Invalid plugins
// are reported as *ConfigError before any request is handled.
func New(cfg Config) (*Pipeline, error) {
	for i, p := range cfg.Plugins {
		if isNil(p.Handler) {
			return nil, &ConfigError{Index: i, Plugin: p.Name, Err: ErrMissingHandler}
		}
		if p.Condition != nil && isNil(p.Condition) {
			return nil, &ConfigError{Index: i, Plugin: p.Name, Err: ErrInvalidCondition}
		}
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Pipeline{
		plugins: append([]Plugin(nil), cfg.Plugins...),
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// isNil reports whether v is nil or an interface holding a nil func, pointer,
// map, channel or slice
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// Plugins returns a copy of the plugin list
func (p *Pipeline) Plugins() []Plugin {
	return append([]Plugin(nil), p.plugins...)
}

// Len returns the number of plugins
func (p *Pipeline) Len() int {
	return len(p.plugins)
}

// Handle runs req through the plugins and then terminal. The returned stream
// is closed when ctx is done; closing it releases every stream the plugins and
// the terminal handler created for this request.
func (p *Pipeline) Handle(ctx context.Context, req *types.Request, terminal TerminalHandler) stream.Stream[*types.Response] {
	if req == nil {
		return stream.Fail[*types.Response](ErrMissingRequest)
	}
	if isNil(terminal) {
		return stream.Fail[*types.Response](ErrMissingTerminal)
	}
	return stream.Bind(ctx, p.handle(ctx, req, 0, terminal))
}

func (p *Pipeline) handle(ctx context.Context, req *types.Request, index int, terminal TerminalHandler) stream.Stream[*types.Response] {
	if index >= len(p.plugins) {
		return terminal.Handle(ctx, req)
	}

	plugin := p.plugins[index]
	next := func(ctx context.Context, r *types.Request) stream.Stream[*types.Response] {
		if r == nil {
			return stream.Fail[*types.Response](ErrMissingRequest)
		}
		return p.handle(ctx, r, index+1, terminal)
	}

	return stream.Defer(func() stream.Stream[*types.Response] {
		if plugin.Condition == nil {
			return p.invoke(ctx, plugin, index, req, next)
		}

		decision := stream.FailIfEmpty(
			stream.From(ctx, plugin.Condition.ShouldHandle(ctx, ConditionArgs{Request: req})),
			ErrConditionEmpty,
		)
		return stream.Then(decision, func(ok bool) stream.Stream[*types.Response] {
			if !ok {
				p.logger.Debug().
					Int("index", index).
					Str("plugin", plugin.Name).
					Str("method", string(req.Method)).
					Str("url", req.URL).
					Msg("Plugin skipped")
				return next(ctx, req)
			}
			return p.invoke(ctx, plugin, index, req, next)
		})
	})
}

func (p *Pipeline) invoke(ctx context.Context, plugin Plugin, index int, req *types.Request, next NextFunc) stream.Stream[*types.Response] {
	p.logger.Debug().
		Int("index", index).
		Str("plugin", plugin.Name).
		Str("method", string(req.Method)).
		Str("url", req.URL).
		Msg("Plugin handling request")

	return stream.From(ctx, plugin.Handler.Handle(ctx, HandlerArgs{Request: req, Next: next}))
}
