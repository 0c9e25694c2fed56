// Package httpclient offers HTTP client construction helpers with bearer authentication and TLS/mTLS options.
//
// It provides a fluent Builder that creates an http.Client which injects the access token of any
// oauth2.TokenSource, typically an oauth2flow.RefreshingTokenSource, and supports configurable TLS
// (custom CA, mTLS, insecure for tests), timeouts, base transports, redirect handling and request logging.
// BearerTransport and LoggingTransport can wrap any RoundTripper.
//
// # Features
//
//   - Fluent builder for http.Client with optional bearer token injection
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - Custom timeouts, base transport override, and redirect disabling
//   - Request logging (method, URL without query, status, duration)
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithAuthenticator(ctx, flow, auth, func(a *oauth2flow.Authenticator) error {
//	        return oauth2flow.SaveAuthenticator("token.json", a)
//	    }).
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://api.example.com/data")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewBearerTransport(flow.TokenSource(ctx, auth), nil)
//	client := &http.Client{Transport: transport}
//
// All components are safe for concurrent use if the provided token source is.
package httpclient
