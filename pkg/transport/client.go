package transport

import (
	"context"
	"net/http"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Client binds a pipeline to a terminal handler
type Client struct {
	pipeline *pipeline.Pipeline
	terminal pipeline.TerminalHandler
}

// NewClient creates a client. A nil pipeline passes requests straight to the
// terminal; a nil terminal defaults to an HTTPHandler with the default
// configuration.
func NewClient(p *pipeline.Pipeline, terminal pipeline.TerminalHandler) *Client {
	if terminal == nil {
		terminal = NewHTTPHandler(Config{})
	}
	return &Client{pipeline: orEmpty(p), terminal: terminal}
}

func orEmpty(p *pipeline.Pipeline) *pipeline.Pipeline {
	if p != nil {
		return p
	}
	empty, _ := pipeline.New(pipeline.Config{})
	return empty
}

// Do runs req through the pipeline. The caller must close the returned stream.
func (c *Client) Do(ctx context.Context, req *types.Request) stream.Stream[*types.Response] {
	return c.pipeline.Handle(ctx, req, c.terminal)
}

// Get runs a GET request for url
func (c *Client) Get(ctx context.Context, url string) stream.Stream[*types.Response] {
	return c.Do(ctx, types.NewRequest(types.MethodGet, url))
}

// HTTPClient returns an *http.Client that sends its requests through the
// pipeline
func (c *Client) HTTPClient(mode Mode) *http.Client {
	return &http.Client{
		Transport: &RoundTripper{Pipeline: c.pipeline, Terminal: c.terminal, Mode: mode},
	}
}
