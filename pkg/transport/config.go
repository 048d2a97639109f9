// Package transport connects convoy pipelines to net/http.
//
// HTTPHandler is a terminal handler that performs the exchange with an
// *http.Client. RoundTripper runs ordinary *http.Request values through a
// pipeline so that any http.Client can benefit from its plugins.
package transport

import (
	"net/http"
	"time"
)

// DefaultUserAgent is sent when a request carries no User-Agent header
const DefaultUserAgent = "convoy/1.0"

// Config configures the HTTP client used by HTTPHandler
type Config struct {
	// Client, when set, is used as is and the remaining client settings are
	// ignored
	Client *http.Client `json:"-" yaml:"-"`

	Timeout   time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	UserAgent string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// Transport configuration
	MaxIdleConns          int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `json:"max_idle_conns_per_host,omitempty" yaml:"max_idle_conns_per_host,omitempty"`
	MaxConnsPerHost       int           `json:"max_conns_per_host,omitempty" yaml:"max_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `json:"idle_conn_timeout,omitempty" yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout,omitempty" yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `json:"expect_continue_timeout,omitempty" yaml:"expect_continue_timeout,omitempty"`
}

// withDefaults returns a copy of cfg with unset fields filled in
func (cfg Config) withDefaults() Config {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	// Set transport defaults
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = 10 * time.Second
	}
	if cfg.ExpectContinueTimeout == 0 {
		cfg.ExpectContinueTimeout = 1 * time.Second
	}
	return cfg
}

// NewHTTPClient creates an *http.Client with connection pooling configured
// from cfg
func NewHTTPClient(cfg Config) *http.Client {
	cfg = cfg.withDefaults()
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: createTransport(cfg),
	}
}

// createTransport creates an http.Transport with the specified configuration
func createTransport(cfg Config) *http.Transport {
	return &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
		Proxy:                 http.ProxyFromEnvironment,
	}
}
