// Package auth provides a plugin that authenticates requests with an OAuth2
// bearer token. Tokens come from any oauth2.TokenSource: a static token, the
// client credentials flow or a KeyPool rotating over several API keys.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// Name is the plugin name used in logs and configuration
const Name = "auth"

// ErrNoTokenSource is returned by New when no token source is configured
var ErrNoTokenSource = errors.New("auth: token source is required")

// Config holds the configuration for the auth plugin
type Config struct {
	// TokenSource provides the access token for every request
	TokenSource oauth2.TokenSource

	// OnUnauthorized is called when a request fails with 401. The failure is
	// passed on unchanged afterwards.
	OnUnauthorized func(ctx context.Context, resp *types.Response)

	// Condition selects the requests to authenticate. Defaults to every request.
	Condition pipeline.Condition

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger
}

// Plugin is the auth plugin
type Plugin struct {
	tokens         oauth2.TokenSource
	onUnauthorized func(ctx context.Context, resp *types.Response)
	condition      pipeline.Condition
	logger         zerolog.Logger
}

var _ pipeline.Handler = (*Plugin)(nil)

// New creates an auth plugin
func New(cfg Config) (*Plugin, error) {
	if cfg.TokenSource == nil {
		return nil, ErrNoTokenSource
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Plugin{
		tokens:         cfg.TokenSource,
		onUnauthorized: cfg.OnUnauthorized,
		condition:      cfg.Condition,
		logger:         logger.With().Str("component", Name).Logger(),
	}, nil
}

// StaticToken returns a token source that always yields accessToken
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// ClientCredentials returns a token source for the OAuth2 client credentials
// flow. Tokens are cached until they expire.
func ClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string, scopes ...string) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return cfg.TokenSource(ctx)
}

// AsPlugin returns the pipeline registration of the plugin
func (p *Plugin) AsPlugin() pipeline.Plugin {
	return pipeline.Plugin{Name: Name, Handler: p, Condition: p.condition}
}

// Handle implements pipeline.Handler
func (p *Plugin) Handle(ctx context.Context, args pipeline.HandlerArgs) stream.Source[*types.Response] {
	token := stream.FromFuture(ctx, func(ctx context.Context) (*oauth2.Token, error) {
		tok, err := p.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}
		return tok, nil
	})

	reporter, _ := p.tokens.(Reporter)

	return stream.Streaming(stream.Then(token, func(tok *oauth2.Token) stream.Stream[*types.Response] {
		req := args.Request.WithHeader("Authorization", tok.Type()+" "+tok.AccessToken)

		responses := args.Next(ctx, req)
		if reporter != nil {
			var once sync.Once
			responses = stream.Tap(responses, func(resp *types.Response) {
				if resp.CacheMetadata == nil {
					once.Do(func() { reporter.ReportSuccess(tok.AccessToken) })
				}
			})
		}

		return stream.Catch(responses, func(err error) stream.Stream[*types.Response] {
			resp, ok := types.AsResponse(err)
			if !ok {
				return stream.Fail[*types.Response](err)
			}
			if reporter != nil && rejected(resp.Status) {
				reporter.ReportFailure(tok.AccessToken)
			}
			if resp.Status == http.StatusUnauthorized {
				p.logger.Warn().Str("url", req.URL).Msg("Request unauthorized")
				if p.onUnauthorized != nil {
					p.onUnauthorized(ctx, resp)
				}
			}
			return stream.Fail[*types.Response](err)
		})
	}))
}

// rejected reports statuses that count against the key a request was sent with
func rejected(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		status == http.StatusTooManyRequests
}
