// Package config loads pipeline definitions from YAML files and builds them
// into ready-to-use pipelines.
//
// A pipeline file lists plugins in order. Each entry names its type, an
// optional "when" clause restricting the requests it handles, and the
// settings of that plugin type:
//
//	plugins:
//	  - type: logger
//	  - type: cache
//	    when: { methods: [GET], origins: ["https://api.example.com"] }
//	    cache: { add_cache_metadata: true, store: sqlite, path: cache.db }
//	  - type: auth
//	    auth: { token: "${API_TOKEN}" }
//	transport: { timeout: 30s }
//
// References of the form ${NAME} or ${NAME:-default} are replaced with
// environment variables before the file is parsed.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/convoy/pkg/transport"
)

// Plugin types understood by Build
const (
	TypeLogger    = "logger"
	TypeRequestID = "request_id"
	TypeCache     = "cache"
	TypeRetry     = "retry"
	TypeRateLimit = "rate_limit"
	TypeAuth      = "auth"
	TypeTimeout   = "timeout"
	TypeMetrics   = "metrics"
	TypeTracing   = "tracing"
)

// Cache store kinds
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config represents a complete pipeline definition
type Config struct {
	Plugins   []PluginConfig   `yaml:"plugins"`
	Transport transport.Config `yaml:"transport,omitempty"`

	// Mode is the round trip mode of HTTP clients built from the pipeline:
	// "latest" (default) or "first"
	Mode string `yaml:"mode,omitempty"`
}

// PluginConfig represents a single plugin entry
type PluginConfig struct {
	// Type selects the plugin (e.g., "cache", "retry")
	Type string `yaml:"type"`

	// Name overrides the name the plugin is registered and logged under
	Name string `yaml:"name,omitempty"`

	// When restricts the requests the plugin handles
	When *WhenConfig `yaml:"when,omitempty"`

	// Settings of the individual plugin types
	Logger    *LoggerConfig    `yaml:"logger,omitempty"`
	RequestID *RequestIDConfig `yaml:"request_id,omitempty"`
	Cache     *CacheConfig     `yaml:"cache,omitempty"`
	Retry     *RetryConfig     `yaml:"retry,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
	Auth      *AuthConfig      `yaml:"auth,omitempty"`
	Timeout   time.Duration    `yaml:"timeout,omitempty"`
}

// WhenConfig restricts a plugin to matching requests. Every non-empty list
// must match.
type WhenConfig struct {
	Methods []string `yaml:"methods,omitempty"`
	Origins []string `yaml:"origins,omitempty"`
	Paths   []string `yaml:"paths,omitempty"`
}

// LoggerConfig configures the logger plugin
type LoggerConfig struct {
	Level   string `yaml:"level,omitempty"`
	Headers bool   `yaml:"headers,omitempty"`
}

// RequestIDConfig configures the request ID plugin
type RequestIDConfig struct {
	Header string `yaml:"header,omitempty"`
}

// CacheConfig configures the cache plugin
type CacheConfig struct {
	AddCacheMetadata bool   `yaml:"add_cache_metadata,omitempty"`
	Store            string `yaml:"store,omitempty"`
	Path             string `yaml:"path,omitempty"`
	Size             int    `yaml:"size,omitempty"`
	Deduplicate      *bool  `yaml:"deduplicate,omitempty"`
}

// RetryConfig configures the retry plugin
type RetryConfig struct {
	// Zero values keep the defaults of retry.DefaultPolicy
	MaxRetries   int           `yaml:"max_retries,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
	Jitter       float64       `yaml:"jitter,omitempty"`

	// Statuses overrides the retried statuses. Exchanges that never reached
	// the server are always retried.
	Statuses []int `yaml:"statuses,omitempty"`
}

// RateLimitConfig configures the rate limit plugin
type RateLimitConfig struct {
	RequestsPerSecond   float64 `yaml:"requests_per_second"`
	Burst               int     `yaml:"burst,omitempty"`
	RespectServerLimits bool    `yaml:"respect_server_limits,omitempty"`
}

// AuthConfig configures the auth plugin with exactly one of a static token,
// a pool of API keys or OAuth2 client credentials
type AuthConfig struct {
	Token string `yaml:"token,omitempty"`

	// Tokens are rotated round-robin; rejected keys back off
	Tokens []string `yaml:"tokens,omitempty"`

	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// Load loads and parses a YAML pipeline file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML pipeline definition
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(data)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${NAME} and ${NAME:-default} with environment variables.
// Unset variables without a default expand to the empty string.
func ExpandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envPattern.FindSubmatch(match)
		if value, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(value)
		}
		return groups[2]
	})
}
