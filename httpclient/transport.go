package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// BearerTransport is an http.RoundTripper that adds the access token of a
// token source to outgoing requests.
//
// The request is cloned before the Authorization header is set, so the caller's
// request is never modified.
type BearerTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Source provides access tokens, for example an *oauth2flow.RefreshingTokenSource.
	Source oauth2.TokenSource
}

// NewBearerTransport creates a BearerTransport. base defaults to http.DefaultTransport.
func NewBearerTransport(source oauth2.TokenSource, base http.RoundTripper) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &BearerTransport{
		Base:   base,
		Source: source,
	}
}

// ContextTokenSource is a token source whose token requests can follow the
// request context, such as *oauth2flow.RefreshingTokenSource.
type ContextTokenSource interface {
	TokenWithContext(ctx context.Context) (*oauth2.Token, error)
}

// RoundTrip implements http.RoundTripper.
// When Source is a ContextTokenSource the token fetch respects the request context.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source == nil {
		return nil, errors.New("httpclient: token source is nil")
	}

	var token *oauth2.Token
	var err error
	if cs, ok := t.Source.(ContextTokenSource); ok {
		token, err = cs.TokenWithContext(req.Context())
	} else {
		token, err = t.Source.Token()
	}
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("httpclient: token source returned an empty token")
	}

	reqClone := req.Clone(req.Context())
	token.SetAuthHeader(reqClone)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqClone)
}

// Logger is the logging interface used by LoggingTransport.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggingTransport logs the method, URL, status and duration of each request.
// Headers and bodies are never logged.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger Logger
}

// NewLoggingTransport wraps base with request logging. base defaults to http.DefaultTransport.
func NewLoggingTransport(base http.RoundTripper, logger Logger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingTransport{Base: base, Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Logger == nil {
		return base.RoundTrip(req)
	}

	target := redactedURL(req)
	start := time.Now()

	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.Logger.Printf("httpclient: %s %s failed: %v (took %v)", req.Method, target, err, elapsed)
		return nil, err
	}

	t.Logger.Printf("httpclient: %s %s -> %d (took %v)", req.Method, target, resp.StatusCode, elapsed)
	return resp, nil
}

// redactedURL drops the query, which may carry codes or tokens.
func redactedURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	return u.Redacted()
}
