package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/cecil-the-coder/convoy/pkg/transport"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// ErrUnknownPlugin is reported for plugin entries whose type Build does not know
var ErrUnknownPlugin = errors.New("unknown plugin type")

// ValidationError reports an invalid field of a pipeline definition
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the definition and returns every problem found, joined
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Err: fmt.Errorf(format, args...)})
	}

	if _, err := transport.ParseMode(c.Mode); err != nil {
		errs = append(errs, &ValidationError{Field: "mode", Err: err})
	}
	if c.Transport.Timeout < 0 {
		fail("transport.timeout", "must not be negative")
	}

	for i, pc := range c.Plugins {
		field := func(name string) string {
			if name == "" {
				return fmt.Sprintf("plugins[%d]", i)
			}
			return fmt.Sprintf("plugins[%d].%s", i, name)
		}

		if pc.When != nil {
			for _, m := range pc.When.Methods {
				if _, err := types.ParseMethod(m); err != nil {
					errs = append(errs, &ValidationError{Field: field("when.methods"), Err: err})
				}
			}
			for _, o := range pc.When.Origins {
				if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
					fail(field("when.origins"), "invalid origin %q", o)
				}
			}
		}

		switch pc.Type {
		case TypeLogger:
			if pc.Logger != nil && pc.Logger.Level != "" {
				if _, err := zerolog.ParseLevel(pc.Logger.Level); err != nil {
					errs = append(errs, &ValidationError{Field: field("logger.level"), Err: err})
				}
			}
		case TypeCache:
			if cc := pc.Cache; cc != nil {
				switch cc.Store {
				case "", StoreMemory:
				case StoreSQLite:
					if cc.Path == "" {
						fail(field("cache.path"), "required for the %s store", StoreSQLite)
					}
				default:
					fail(field("cache.store"), "unknown store %q", cc.Store)
				}
				if cc.Size < 0 {
					fail(field("cache.size"), "must not be negative")
				}
			}
		case TypeRetry:
			if rc := pc.Retry; rc != nil {
				if rc.MaxRetries < 0 {
					fail(field("retry.max_retries"), "must not be negative")
				}
				if rc.InitialDelay < 0 || rc.MaxDelay < 0 {
					fail(field("retry"), "delays must not be negative")
				}
				if rc.MaxDelay > 0 && rc.InitialDelay > rc.MaxDelay {
					fail(field("retry.initial_delay"), "exceeds max_delay")
				}
				if rc.Jitter < 0 || rc.Jitter > 1 {
					fail(field("retry.jitter"), "must be between 0 and 1")
				}
			}
		case TypeRateLimit:
			rc := pc.RateLimit
			if rc == nil {
				fail(field("rate_limit"), "settings are required")
				continue
			}
			if rc.RequestsPerSecond < 0 || rc.Burst < 0 {
				fail(field("rate_limit"), "limits must not be negative")
			}
			if rc.RequestsPerSecond == 0 && !rc.RespectServerLimits {
				fail(field("rate_limit"), "set requests_per_second or respect_server_limits")
			}
		case TypeAuth:
			ac := pc.Auth
			if ac == nil {
				fail(field("auth"), "settings are required")
				continue
			}
			sources := 0
			if ac.Token != "" {
				sources++
			}
			if len(ac.Tokens) > 0 {
				sources++
			}
			if ac.ClientID != "" || ac.ClientSecret != "" || ac.TokenURL != "" {
				sources++
				if ac.ClientID == "" || ac.ClientSecret == "" || ac.TokenURL == "" {
					fail(field("auth"), "client_id, client_secret and token_url are all required")
				}
			}
			if sources != 1 {
				fail(field("auth"), "set exactly one of token, tokens or client credentials")
			}
		case TypeTimeout:
			if pc.Timeout <= 0 {
				fail(field("timeout"), "must be positive")
			}
		case TypeRequestID, TypeMetrics, TypeTracing:
		default:
			errs = append(errs, &ValidationError{
				Field: field("type"),
				Err:   fmt.Errorf("%w %q", ErrUnknownPlugin, pc.Type),
			})
		}
	}
	return errors.Join(errs...)
}
