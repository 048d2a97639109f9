package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Mode selects which emission of the pipeline a RoundTripper returns
type Mode int

const (
	// Latest waits for the pipeline to complete and returns its last response
	Latest Mode = iota

	// First returns the first response, typically a cached one, and lets the
	// pipeline finish in the background
	First
)

// ParseMode parses "latest" or "first"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "latest":
		return Latest, nil
	case "first":
		return First, nil
	default:
		return Latest, fmt.Errorf("unknown round trip mode %q", s)
	}
}

// ErrNoResponse is returned when the pipeline completes without a response
var ErrNoResponse = errors.New("transport: pipeline completed without a response")

// RoundTripper implements http.RoundTripper on top of a pipeline.
//
// HTTP error statuses are returned as ordinary *http.Response values, as
// net/http does. Only exchanges that produced no response return an error.
type RoundTripper struct {
	// Pipeline may be nil, in which case requests go straight to Terminal
	Pipeline *pipeline.Pipeline

	// Terminal performs the exchange. Defaults to an HTTPHandler with the
	// default configuration.
	Terminal pipeline.TerminalHandler

	Mode Mode

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// RoundTrip implements http.RoundTripper
func (rt *RoundTripper) RoundTrip(httpReq *http.Request) (*http.Response, error) {
	req, err := FromHTTPRequest(httpReq)
	if err != nil {
		return nil, err
	}

	terminal := rt.Terminal
	if terminal == nil {
		terminal = NewHTTPHandler(Config{})
	}

	ctx := httpReq.Context()
	if rt.Mode == First {
		// The remaining emissions are drained after the caller is gone.
		ctx = context.WithoutCancel(ctx)
	}
	responses := orEmpty(rt.Pipeline).Handle(ctx, req, terminal)

	var resp *types.Response
	if rt.Mode == First {
		resp, err = rt.first(responses)
	} else {
		resp, err = latest(responses)
	}
	if err != nil {
		failed, ok := types.AsResponse(err)
		if !ok {
			return nil, err
		}
		if failed.Status == types.StatusUnknown {
			return nil, fmt.Errorf("transport: %s: %s", failed.StatusText, failed.Body)
		}
		resp = failed
	}
	return ToHTTPResponse(httpReq, resp), nil
}

func latest(responses stream.Stream[*types.Response]) (*types.Response, error) {
	var last *types.Response
	err := stream.ForEach(responses, func(resp *types.Response) error {
		last = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrNoResponse
	}
	return last, nil
}

func (rt *RoundTripper) first(responses stream.Stream[*types.Response]) (*types.Response, error) {
	resp, err := responses.Next()
	if err != nil {
		_ = responses.Close()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoResponse
		}
		return nil, err
	}

	logger := log.Logger
	if rt.Logger != nil {
		logger = *rt.Logger
	}
	go func() {
		if _, err := stream.Collect(responses); err != nil {
			logger.Debug().Err(err).Msg("Background revalidation failed")
		}
	}()
	return resp, nil
}

// FromHTTPRequest converts an outgoing *http.Request. Single-valued query
// parameters become request params; repeated ones stay in the URL.
func FromHTTPRequest(httpReq *http.Request) (*types.Request, error) {
	method, err := types.ParseMethod(httpReq.Method)
	if err != nil {
		if httpReq.Body != nil {
			_ = httpReq.Body.Close()
		}
		return nil, err
	}

	u := *httpReq.URL
	query := u.Query()
	repeated := url.Values{}
	for name, values := range query {
		if len(values) > 1 {
			repeated[name] = values
			delete(query, name)
		}
	}
	u.RawQuery = repeated.Encode()
	u.Fragment = ""

	req := types.NewRequest(method, u.String())
	for name, values := range query {
		req.Params[name] = values[0]
	}
	for name, values := range httpReq.Header {
		req.Headers[name] = strings.Join(values, ", ")
	}
	if httpReq.Body != nil && httpReq.Body != http.NoBody {
		body, err := io.ReadAll(httpReq.Body)
		_ = httpReq.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = body
	}
	return req, nil
}

// ToHTTPResponse converts resp into an *http.Response answering httpReq
func ToHTTPResponse(httpReq *http.Request, resp *types.Response) *http.Response {
	header := make(http.Header, len(resp.Headers))
	for name, value := range resp.Headers {
		header.Set(name, value)
	}
	if resp.CacheMetadata != nil {
		header.Set("X-Convoy-Cache", "hit")
	}
	return &http.Response{
		Status:        strconv.Itoa(resp.Status) + " " + resp.StatusText,
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       httpReq,
	}
}
