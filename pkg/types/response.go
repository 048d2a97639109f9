package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"time"
)

// StatusUnknown is the status of a response that never reached the server
const StatusUnknown = 0

// CacheMetadata describes when a stored response was captured
type CacheMetadata struct {
	CreatedAt time.Time `json:"createdAt"`
}

// Response describes the outcome of an HTTP exchange. Successful and failed
// outcomes share this shape; see IsError.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body,omitempty"`

	// CacheMetadata is set on responses served from a cache store when the
	// cache plugin is configured to expose it. It is never persisted.
	CacheMetadata *CacheMetadata `json:"-"`
}

// NewResponse creates a 200 OK response with the given body
func NewResponse(body []byte) *Response {
	return &Response{
		Status:     http.StatusOK,
		StatusText: http.StatusText(http.StatusOK),
		Headers:    map[string]string{},
		Body:       body,
	}
}

// NewStatusResponse creates a response with the given status and its standard text
func NewStatusResponse(status int, body []byte) *Response {
	return &Response{
		Status:     status,
		StatusText: http.StatusText(status),
		Headers:    map[string]string{},
		Body:       body,
	}
}

// NewJSONResponse creates a response whose body is v encoded as JSON
func NewJSONResponse(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response body: %w", err)
	}
	resp := NewStatusResponse(status, body)
	resp.Headers["Content-Type"] = "application/json"
	return resp, nil
}

// NewUnknownErrorResponse normalizes a failure that produced no HTTP response
// (DNS, refused connection, TLS) into a status 0 response.
func NewUnknownErrorResponse(err error) *Response {
	resp := &Response{
		Status:     StatusUnknown,
		StatusText: "Unknown Error",
		Headers:    map[string]string{},
	}
	if err != nil {
		resp.Body = []byte(err.Error())
	}
	return resp
}

// Clone returns a deep copy of the response
func (r *Response) Clone() *Response {
	clone := &Response{
		Status:     r.Status,
		StatusText: r.StatusText,
		Headers:    make(map[string]string, len(r.Headers)),
	}
	maps.Copy(clone.Headers, r.Headers)
	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}
	if r.CacheMetadata != nil {
		meta := *r.CacheMetadata
		clone.CacheMetadata = &meta
	}
	return clone
}

// Header returns the value of the named header, matching the name case-insensitively
func (r *Response) Header(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

// IsError reports whether the response represents a failed exchange
func (r *Response) IsError() bool {
	return r.Status == StatusUnknown || r.Status >= http.StatusBadRequest
}

// IsServerOrUnknownError reports whether the failure is on the server side or
// the server was never reached
func (r *Response) IsServerOrUnknownError() bool {
	return r.Status == StatusUnknown || r.Status >= http.StatusInternalServerError
}

// Source reports where the response came from: "cache" when it carries cache
// metadata, "network" otherwise
func (r *Response) Source() string {
	if r.CacheMetadata != nil {
		return "cache"
	}
	return "network"
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Error implements error so that a failed exchange can be delivered on a
// stream's error channel as the Response itself
func (r *Response) Error() string {
	if r.StatusText != "" {
		return fmt.Sprintf("http response %d %s", r.Status, r.StatusText)
	}
	return fmt.Sprintf("http response %d", r.Status)
}

// AsResponse extracts the Response carried by err, if any
func AsResponse(err error) (*Response, bool) {
	var resp *Response
	if errors.As(err, &resp) {
		return resp, true
	}
	return nil, false
}
