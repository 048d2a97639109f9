// Package pipeline composes plugins into a single request handler.
//
// A Pipeline holds an ordered, fixed list of plugins. Handling a request is a
// fold over that list: the plugin at index i receives the request and a Next
// function that continues with the plugins after i and, once the list is
// exhausted, with the terminal handler. A plugin whose condition answers false
// is skipped and the request passes through untouched.
//
// Plugins may short-circuit (never call Next), transform the request before
// calling Next, transform the response stream Next returns, or call Next more
// than once. Every plugin result is normalized with stream.From so plugins can
// return a plain value, a deferred value or a stream.
//
//	p, err := pipeline.New(pipeline.Config{Plugins: []pipeline.Plugin{
//		logger.New(logger.Config{}).AsPlugin(),
//		cache.New(cache.Config{}).AsPlugin(),
//	}})
//	if err != nil {
//		return err
//	}
//	responses := p.Handle(ctx, types.NewRequest(types.MethodGet, url), transport.NewHTTPHandler(transport.Config{}))
//	defer responses.Close()
package pipeline
