// Package testutil provides test helpers shared by the saloon packages.
//
// # Utilities
//
//   - NewLocalHTTPServer: start an httptest server bound to 127.0.0.1, closed on cleanup
//   - Provider: a stub authorization server serving /token and /user
//   - RoundTripFunc and StaticJSONResponse: inline http.RoundTripper implementations
//   - SignedJWT: HS256 tokens for claim decoding tests
//   - WriteTestCACert / WriteTestCertAndKey: temporary CA and leaf certificates for TLS tests
package testutil
