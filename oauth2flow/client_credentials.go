package oauth2flow

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials returns a cached, self-refreshing token source that uses the
// client credentials grant against cfg's token endpoint. scopes default to
// cfg.DefaultScopes. RedirectURI is not needed for this grant.
//
// Token requests keep ctx's values but not its cancellation. httpClient is used for
// token requests when non-nil.
func ClientCredentials(ctx context.Context, cfg Config, httpClient *http.Client, scopes ...string) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" {
		return nil, &ConfigValidationError{Field: "client id"}
	}
	if cfg.ClientSecret == "" {
		return nil, &ConfigValidationError{Field: "client secret"}
	}

	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	if len(scopes) == 0 {
		scopes = cfg.DefaultScopes
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL(),
		Scopes:       normalizeScopes(scopes),
		AuthStyle:    cfg.authStyle(),
	}
	return cc.TokenSource(ctx), nil
}
