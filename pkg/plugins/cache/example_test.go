package cache_test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/plugins/cache"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// ExampleNew demonstrates the stored response arriving before the fresh one
func ExampleNew() {
	release := make(chan struct{})
	var calls atomic.Int32
	terminal := pipeline.TerminalFunc(func(ctx context.Context, req *types.Request) stream.Stream[*types.Response] {
		n := calls.Add(1)
		return stream.FromFuture(ctx, func(ctx context.Context) (*types.Response, error) {
			if n > 1 {
				<-release
			}
			return types.NewResponse([]byte(fmt.Sprintf("version %d", n))), nil
		})
	})

	logger := zerolog.Nop()
	p, err := pipeline.New(pipeline.Config{Plugins: []pipeline.Plugin{
		cache.New(cache.Config{AddCacheMetadata: true, Logger: &logger}).AsPlugin(),
	}})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	ctx := context.Background()
	req := types.NewRequest(types.MethodGet, "https://api.example.com/items")

	first, _ := stream.Collect(p.Handle(ctx, req, terminal))
	fmt.Printf("first request: %s from %s\n", first[0].Body, first[0].Source())

	responses := p.Handle(ctx, req, terminal)
	cached, _ := responses.Next()
	fmt.Printf("second request: %s from %s\n", cached.Body, cached.Source())

	close(release)
	fresh, _ := stream.Collect(responses)
	fmt.Printf("second request: %s from %s\n", fresh[0].Body, fresh[0].Source())

	// Output:
	// first request: version 1 from network
	// second request: version 1 from cache
	// second request: version 2 from network
}
