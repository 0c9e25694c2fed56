package grpcauth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// ErrNilTokenSource is returned by the interceptors when built without a token source.
var ErrNilTokenSource = errors.New("grpcauth: token source is nil")

// contextTokenSource is implemented by oauth2flow.RefreshingTokenSource.
type contextTokenSource interface {
	TokenWithContext(ctx context.Context) (*oauth2.Token, error)
}

// accessToken fetches a token, following ctx when ts supports it.
func accessToken(ctx context.Context, ts oauth2.TokenSource) (*oauth2.Token, error) {
	if ts == nil {
		return nil, ErrNilTokenSource
	}

	var token *oauth2.Token
	var err error
	if cs, ok := ts.(contextTokenSource); ok {
		token, err = cs.TokenWithContext(ctx)
	} else {
		token, err = ts.Token()
	}
	if err != nil {
		return nil, fmt.Errorf("grpcauth: failed to get token: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("grpcauth: token source returned an empty token")
	}
	return token, nil
}

func withBearer(ctx context.Context, ts oauth2.TokenSource) (context.Context, error) {
	token, err := accessToken(ctx, ts)
	if err != nil {
		return nil, err
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", token.Type()+" "+token.AccessToken), nil
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that adds the
// access token of ts as "authorization: Bearer <token>" metadata.
//
// If the token cannot be obtained the call is aborted with an error.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(grpcauth.UnaryClientInterceptor(flow.TokenSource(ctx, auth))),
//	)
func UnaryClientInterceptor(ts oauth2.TokenSource) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		// Use the RPC context for token fetching to respect cancellation and deadlines
		ctx, err := withBearer(ctx, ts)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is the streaming counterpart of UnaryClientInterceptor.
func StreamClientInterceptor(ts oauth2.TokenSource) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := withBearer(ctx, ts)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}
