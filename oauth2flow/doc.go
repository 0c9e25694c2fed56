// Package oauth2flow implements the OAuth2 authorization code grant for API clients.
//
// A Flow builds the authorization URL, exchanges the callback code for an Authenticator,
// refreshes it and fetches the authenticated user. Requests go through a Sender
// (an *http.Client by default), so tests can plug in fake.MockTransport.
//
// # Features
//
//   - Authorization URLs with default + requested scopes, a configurable separator and a
//     32-character random state (optionally PKCE S256)
//   - State check on the callback before any request is sent
//   - Typed token response decoding: access_token, optional refresh_token and expires_in
//   - Refresh that keeps the previous refresh token when the provider does not rotate it
//   - Raw-response variants (AccessTokenResponse, RefreshResponse) that skip status checks
//   - RefreshingTokenSource, an oauth2.TokenSource for httpclient and grpcauth
//   - YAML config files, environment overrides and OpenID Connect discovery
//
// # Quick Start
//
//	flow := oauth2flow.NewFlow(oauth2flow.Config{
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    RedirectURI:  "http://localhost:8080/callback",
//	    BaseURL:      "https://provider.example.com/oauth",
//	}, oauth2flow.WithLoggingEnabled())
//
//	authURL, err := flow.AuthorizationURL([]string{"read:user"})
//	// redirect the user to authURL, then on the callback:
//	auth, err := flow.AccessToken(ctx, code, oauth2flow.WithCallbackState(r.URL.Query().Get("state")))
//
// # Notes
//
//   - A Flow stores the state of its last authorization URL; use one Flow per
//     in-flight authorization.
//   - If an expected state is given, the callback state must equal it; an empty
//     callback state is rejected too.
package oauth2flow
