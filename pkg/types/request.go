package types

import (
	"fmt"
	"maps"
	"strings"
)

// Method is an HTTP request method understood by the pipeline
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Valid reports whether m is one of the supported methods
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions:
		return true
	}
	return false
}

// ParseMethod parses a method name case-insensitively
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported HTTP method %q", s)
	}
	return m, nil
}

// Request describes an outgoing HTTP exchange independently of any transport.
// A Request must not be mutated once it has been handed to the pipeline.
type Request struct {
	URL     string            `json:"url"`
	Method  Method            `json:"method"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    []byte            `json:"body,omitempty"`
}

// NewRequest creates a request with empty headers and params.
// An empty method defaults to GET.
func NewRequest(method Method, url string) *Request {
	if method == "" {
		method = MethodGet
	}
	return &Request{
		URL:     url,
		Method:  method,
		Headers: map[string]string{},
		Params:  map[string]string{},
	}
}

// Clone returns a deep copy of the request
func (r *Request) Clone() *Request {
	clone := &Request{
		URL:     r.URL,
		Method:  r.Method,
		Headers: make(map[string]string, len(r.Headers)),
		Params:  make(map[string]string, len(r.Params)),
	}
	maps.Copy(clone.Headers, r.Headers)
	maps.Copy(clone.Params, r.Params)
	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}
	return clone
}

// Header returns the value of the named header, matching the name case-insensitively
func (r *Request) Header(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

// WithHeader returns a copy of the request with the header set
func (r *Request) WithHeader(name, value string) *Request {
	clone := r.Clone()
	setHeader(clone.Headers, name, value)
	return clone
}

// WithHeaders returns a copy of the request with all given headers set
func (r *Request) WithHeaders(headers map[string]string) *Request {
	clone := r.Clone()
	for name, value := range headers {
		setHeader(clone.Headers, name, value)
	}
	return clone
}

// WithParam returns a copy of the request with the query param set
func (r *Request) WithParam(name, value string) *Request {
	clone := r.Clone()
	clone.Params[name] = value
	return clone
}

// WithURL returns a copy of the request targeting url
func (r *Request) WithURL(url string) *Request {
	clone := r.Clone()
	clone.URL = url
	return clone
}

// WithMethod returns a copy of the request using method m
func (r *Request) WithMethod(m Method) *Request {
	clone := r.Clone()
	clone.Method = m
	return clone
}

// WithBody returns a copy of the request carrying body
func (r *Request) WithBody(body []byte) *Request {
	clone := r.Clone()
	clone.Body = append([]byte(nil), body...)
	return clone
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// setHeader replaces any existing header of the same name regardless of case
func setHeader(headers map[string]string, name, value string) {
	for k := range headers {
		if k != name && strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
	headers[name] = value
}
