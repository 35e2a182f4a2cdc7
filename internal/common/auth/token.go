// internal/common/auth/token.go
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// NewTokenSource returns the token source the transport attaches to every
// request, or nil when no authentication is configured.
//
// A static token is used as-is. Otherwise the client credentials grant is run
// against TokenURL (Keycloak and most OIDC providers expose one), and the
// returned source caches the token until shortly before expiry.
func NewTokenSource(ctx context.Context, cfg config.AuthConfig) oauth2.TokenSource {
	if cfg.Token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		})
	}

	if cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// the token endpoint gets its own bounded client
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: 30 * time.Second})
	return cc.TokenSource(ctx)
}
