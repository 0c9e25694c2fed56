package oauth2flow

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Discover fills the authorize, token and user endpoints of cfg from the issuer's
// OpenID Connect discovery document. Credentials and scopes in cfg are kept.
//
// httpClient is used for the discovery request when non-nil.
func Discover(ctx context.Context, issuer string, cfg Config, httpClient *http.Client) (Config, error) {
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Config{}, fmt.Errorf("oauth2flow: discover %s: %w", issuer, err)
	}

	endpoint := provider.Endpoint()
	cfg = cfg.clone()
	cfg.AuthorizeEndpoint = endpoint.AuthURL
	cfg.TokenEndpoint = endpoint.TokenURL
	if userinfo := provider.UserInfoEndpoint(); userinfo != "" {
		cfg.UserEndpoint = userinfo
	}

	return cfg, nil
}
