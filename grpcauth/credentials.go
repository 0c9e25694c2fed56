package grpcauth

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/credentials"
)

// tokenCredentials adapts an oauth2.TokenSource to credentials.PerRPCCredentials.
type tokenCredentials struct {
	source     oauth2.TokenSource
	requireTLS bool
}

// PerRPCCredentials returns credentials that attach the access token of ts to every RPC.
// With requireTLS the credentials refuse to be sent over an insecure connection.
//
//	conn, err := grpc.NewClient(addr,
//	    grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
//	    grpc.WithPerRPCCredentials(grpcauth.PerRPCCredentials(ts, true)),
//	)
func PerRPCCredentials(ts oauth2.TokenSource, requireTLS bool) credentials.PerRPCCredentials {
	return &tokenCredentials{source: ts, requireTLS: requireTLS}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *tokenCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := accessToken(ctx, c.source)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"authorization": token.Type() + " " + token.AccessToken,
	}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *tokenCredentials) RequireTransportSecurity() bool {
	return c.requireTLS
}
