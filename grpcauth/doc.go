// Package grpcauth authenticates gRPC clients with OAuth2 access tokens.
//
// Any oauth2.TokenSource works; an oauth2flow.RefreshingTokenSource refreshes the
// authorization code grant's tokens as they expire, and oauth2flow.ClientCredentials
// covers service accounts.
//
// # Features
//
//   - Unary and stream client interceptors adding "authorization: Bearer <token>" metadata
//   - credentials.PerRPCCredentials for grpc.WithPerRPCCredentials
//   - Builder for connections with TLS 1.2+, custom CA, mTLS and server name override
//
// # Quick Start
//
//	ts := flow.TokenSource(ctx, auth)
//	conn, err := grpcauth.NewBuilder().
//	    WithAddress("api.example.com:443").
//	    WithTokenSource(ts).
//	    WithTLS("/path/to/ca.crt", "", "", "").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
// Token fetches use the RPC context, so deadlines and cancellation apply to refreshes.
package grpcauth
