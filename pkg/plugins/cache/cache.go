// Package cache provides a plugin that serves the last stored response for a
// request while the live request is in flight.
//
// For every cacheable request the plugin starts the network request first and
// then looks the request up in its store. A stored response is emitted
// immediately, unless the network has already produced something, and the
// network response follows. Successful network responses replace the stored
// entry. Concurrent identical requests share one network request.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cecil-the-coder/convoy/pkg/conditions"
	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/plugins/cache/store"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "cache"

// Config holds the configuration for the cache plugin
type Config struct {
	// AddCacheMetadata attaches the stored creation time to responses served
	// from the store. Network responses never carry metadata.
	AddCacheMetadata bool

	// Store persists responses. Defaults to an in-memory LRU store.
	Store store.Adapter

	// Condition selects cacheable requests. Defaults to GET requests.
	Condition pipeline.Condition

	// Deduplicate makes concurrent GET or HEAD requests with the same method and
	// key share one network request. Other methods are never shared. Defaults
	// to true.
	Deduplicate *bool

	// Clock stamps stored entries. Defaults to time.Now.
	Clock func() time.Time

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger
}

// Plugin is the cache plugin
type Plugin struct {
	store       store.Adapter
	condition   pipeline.Condition
	addMetadata bool
	dedupe      bool
	now         func() time.Time
	logger      zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*stream.Shared[*types.Response]
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates a cache plugin
func New(cfg Config) *Plugin {
	p := &Plugin{
		store:       cfg.Store,
		condition:   cfg.Condition,
		addMetadata: cfg.AddCacheMetadata,
		dedupe:      true,
		now:         cfg.Clock,
		inflight:    make(map[string]*stream.Shared[*types.Response]),
	}
	if p.store == nil {
		p.store = store.MustNewMemory(store.DefaultMemorySize)
	}
	if p.condition == nil {
		p.condition = conditions.MatchMethod(types.MethodGet)
	}
	if cfg.Deduplicate != nil {
		p.dedupe = *cfg.Deduplicate
	}
	if p.now == nil {
		p.now = time.Now
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	p.logger = logger.With().Str("component", "cache").Logger()
	return p
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// InFlight returns the number of network requests currently shared
func (p *Plugin) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	return stream.Streaming(stream.Defer(func() stream.Stream[*types.Response] {
		return p.handle(ctx, args)
	}))
}

func (p *Plugin) handle(ctx context.Context, args pipeline.HandlerArgs) stream.Stream[*types.Response] {
	key := Key(args.Request)

	// The network subscription must exist before the store lookup is armed.
	network, live := p.subscribe(ctx, key, args)

	lookup := stream.Maybe(ctx, func(ctx context.Context) (*types.Response, bool, error) {
		select {
		case <-network.Attached():
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		return p.load(ctx, key)
	})
	cached := stream.TakeUntil(lookup, network.Produced())

	return stream.Merge(stream.Map(live, p.fromNetwork), cached)
}

// subscribe attaches to the shared network request for key, starting one if
// none is in flight. Only GET and HEAD requests are shared; any other request
// always reaches the network on its own.
func (p *Plugin) subscribe(ctx context.Context, key string, args pipeline.HandlerArgs) (*stream.Shared[*types.Response], stream.Stream[*types.Response]) {
	if !p.dedupe || !shareable(args.Request.Method) {
		shared := p.fetch(ctx, key, args, nil)
		return shared, shared.Subscribe()
	}

	flight := flightKey(args.Request.Method, key)
	for {
		shared, joined := p.acquire(ctx, flight, key, args)
		if sub, ok := shared.TrySubscribe(); ok {
			if joined {
				p.logger.Debug().Str("key", key).Msg("Joined in-flight request")
			}
			return shared, sub
		}

		// Torn down between lookup and subscription.
		p.forget(flight, shared)
	}
}

func shareable(m types.Method) bool {
	return m == "" || m == types.MethodGet || m == types.MethodHead
}

// flightKey separates in-flight GET and HEAD requests for the same cache key
func flightKey(m types.Method, key string) string {
	if m == "" {
		m = types.MethodGet
	}
	return string(m) + " " + key
}

func (p *Plugin) acquire(ctx context.Context, flight, key string, args pipeline.HandlerArgs) (*stream.Shared[*types.Response], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if shared, ok := p.inflight[flight]; ok {
		return shared, true
	}

	var shared *stream.Shared[*types.Response]
	shared = p.fetch(context.WithoutCancel(ctx), key, args, func() { p.forget(flight, shared) })
	p.inflight[flight] = shared
	return shared, false
}

func (p *Plugin) forget(key string, shared *stream.Shared[*types.Response]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[key] == shared {
		delete(p.inflight, key)
	}
}

// fetch builds the shared network stream. Every successful response is
// persisted before it reaches subscribers. Produced is closed before the store
// write so a concurrent lookup can never read the fresh entry back as a hit.
func (p *Plugin) fetch(ctx context.Context, key string, args pipeline.HandlerArgs, onRelease func()) *stream.Shared[*types.Response] {
	var shared *stream.Shared[*types.Response]
	shared = stream.Share(stream.Tap(args.Next(ctx, args.Request), func(resp *types.Response) {
		shared.MarkProduced()
		p.persist(ctx, key, resp)
	}), onRelease)
	return shared
}

func (p *Plugin) persist(ctx context.Context, key string, resp *types.Response) {
	data, err := encodeEntry(resp, p.now())
	if err == nil {
		err = p.store.Set(ctx, key, data)
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Failed to store response")
	}
}

// load returns the stored response for key. Store failures and unreadable
// entries are reported as misses.
func (p *Plugin) load(ctx context.Context, key string) (*types.Response, bool, error) {
	data, found, err := p.store.Get(ctx, key)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("Failed to read cache store")
		}
		return nil, false, nil
	}
	if !found {
		p.logger.Debug().Str("key", key).Msg("Cache miss")
		return nil, false, nil
	}

	e, err := decodeEntry(data)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Ignoring unreadable cache entry")
		return nil, false, nil
	}

	p.logger.Debug().Str("key", key).Time("created_at", e.CacheMetadata.CreatedAt).Msg("Cache hit")
	resp := e.Response
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	if p.addMetadata {
		meta := e.CacheMetadata
		resp.CacheMetadata = &meta
	}
	return resp, true, nil
}

// fromNetwork strips metadata a downstream plugin may have attached. Shared
// values are never modified in place.
func (p *Plugin) fromNetwork(resp *types.Response) *types.Response {
	if resp == nil || resp.CacheMetadata == nil {
		return resp
	}
	out := resp.Clone()
	out.CacheMetadata = nil
	return out
}
