package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// HTTPHandler is a terminal handler that performs requests with an
// *http.Client.
//
// Responses with a status below 400 are emitted as values. Responses with a
// status of 400 or more are delivered as the stream error. Failures that
// produced no response are delivered as a status 0 Response.
type HTTPHandler struct {
	client    *http.Client
	headers   map[string]string
	userAgent string
}

var _ pipeline.TerminalHandler = (*HTTPHandler)(nil)

// NewHTTPHandler creates a terminal handler
func NewHTTPHandler(cfg Config) *HTTPHandler {
	client := cfg.Client
	if client == nil {
		client = NewHTTPClient(cfg)
	}
	cfg = cfg.withDefaults()
	return &HTTPHandler{
		client:    client,
		headers:   cfg.Headers,
		userAgent: cfg.UserAgent,
	}
}

// Handle implements pipeline.TerminalHandler. The exchange starts when the
// returned stream is first pulled and is cancelled when it is closed.
func (h *HTTPHandler) Handle(ctx context.Context, req *types.Request) stream.Stream[*types.Response] {
	return stream.FromFuture(ctx, func(ctx context.Context) (*types.Response, error) {
		return h.do(ctx, req)
	})
}

func (h *HTTPHandler) do(ctx context.Context, req *types.Request) (*types.Response, error) {
	httpReq, err := h.newRequest(ctx, req)
	if err != nil {
		return nil, types.NewUnknownErrorResponse(err)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, types.NewUnknownErrorResponse(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.NewUnknownErrorResponse(fmt.Errorf("failed to read response body: %w", err))
	}

	resp := &types.Response{
		Status:     httpResp.StatusCode,
		StatusText: statusText(httpResp),
		Headers:    flattenHeader(httpResp.Header),
		Body:       body,
	}
	if resp.IsError() {
		return nil, resp
	}
	return resp, nil
}

func (h *HTTPHandler) newRequest(ctx context.Context, req *types.Request) (*http.Request, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	if len(req.Params) > 0 {
		query := target.Query()
		for name, value := range req.Params {
			query.Set(name, value)
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = types.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(method), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, value := range h.headers {
		httpReq.Header.Set(name, value)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}
	return httpReq, nil
}

// statusText extracts the reason phrase from "200 OK"
func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
