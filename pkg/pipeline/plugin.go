package pipeline

import (
	"context"

	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// NextFunc continues the pipeline with the plugins that follow the current one
// and, after them, the terminal handler. It may be called zero, one or several
// times, with the original request or a derived one.
type NextFunc func(ctx context.Context, req *types.Request) stream.Stream[*types.Response]

// HandlerArgs carries the inputs of a plugin handler
type HandlerArgs struct {
	Request *types.Request
	Next    NextFunc
}

// ConditionArgs carries the inputs of a plugin condition
type ConditionArgs struct {
	Request *types.Request
}

// Handler is the part of a plugin that acts on a request
type Handler interface {
	Handle(ctx context.Context, args HandlerArgs) stream.Source[*types.Response]
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, args HandlerArgs) stream.Source[*types.Response]

// Handle calls f(ctx, args)
func (f HandlerFunc) Handle(ctx context.Context, args HandlerArgs) stream.Source[*types.Response] {
	return f(ctx, args)
}

// Condition decides whether a plugin applies to a request. Only the first
// value of the resulting source is used.
type Condition interface {
	ShouldHandle(ctx context.Context, args ConditionArgs) stream.Source[bool]
}

// ConditionFunc adapts a function to the Condition interface
type ConditionFunc func(ctx context.Context, args ConditionArgs) stream.Source[bool]

// ShouldHandle calls f(ctx, args)
func (f ConditionFunc) ShouldHandle(ctx context.Context, args ConditionArgs) stream.Source[bool] {
	return f(ctx, args)
}

// Plugin is one stage of the pipeline. A nil Condition means the plugin
// handles every request.
type Plugin struct {
	Name      string
	Handler   Handler
	Condition Condition
}

// TerminalHandler performs the real network exchange once every plugin has
// had its turn.
type TerminalHandler interface {
	Handle(ctx context.Context, req *types.Request) stream.Stream[*types.Response]
}

// TerminalFunc adapts a function to the TerminalHandler interface
type TerminalFunc func(ctx context.Context, req *types.Request) stream.Stream[*types.Response]

// Handle calls f(ctx, req)
func (f TerminalFunc) Handle(ctx context.Context, req *types.Request) stream.Stream[*types.Response] {
	return f(ctx, req)
}
