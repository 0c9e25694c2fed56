package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/kanjibates/saloon/oauth2flow"
)

// DefaultTimeout is the request timeout of clients built without WithTimeout.
const DefaultTimeout = 30 * time.Second

// Builder provides a fluent interface for constructing HTTP clients
// with optional bearer authentication, request logging and TLS/mTLS support.
type Builder struct {
	tokenSource oauth2.TokenSource

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
	logger          Logger
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         DefaultTimeout,
		followRedirects: true,
	}
}

// WithTokenSource authenticates every request with the tokens of ts.
func (b *Builder) WithTokenSource(ts oauth2.TokenSource) *Builder {
	b.tokenSource = ts
	return b
}

// WithAuthenticator authenticates requests with a, refreshing it through flow when
// it expires. onRefresh, when non-nil, receives each refreshed authenticator.
//
// Parameters:
//   - ctx: Context whose values are used for refresh requests
//   - flow: Flow that owns the client credentials
//   - a: Authenticator from a previous exchange
//   - onRefresh: Optional callback to persist refreshed tokens
func (b *Builder) WithAuthenticator(ctx context.Context, flow *oauth2flow.Flow, a *oauth2flow.Authenticator, onRefresh func(*oauth2flow.Authenticator) error) *Builder {
	var opts []oauth2flow.TokenSourceOption
	if onRefresh != nil {
		opts = append(opts, oauth2flow.WithRefreshCallback(onRefresh))
	}
	b.tokenSource = flow.TokenSource(ctx, a, opts...)
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use it against local test servers.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout. Default is 30 seconds.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets the transport that performs the requests.
// TLS options are ignored when a base transport is set.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// WithLogger logs method, URL, status and duration of every request.
func (b *Builder) WithLogger(logger Logger) *Builder {
	b.logger = logger
	return b
}

// Build constructs the HTTP client with the configured options.
func (b *Builder) Build() (*http.Client, error) {
	transport := b.baseTransport
	if transport == nil {
		base, err := b.defaultTransport()
		if err != nil {
			return nil, err
		}
		transport = base
	}

	if b.logger != nil {
		transport = NewLoggingTransport(transport, b.logger)
	}

	// The bearer transport is outermost so logged requests never need the token.
	if b.tokenSource != nil {
		transport = NewBearerTransport(b.tokenSource, transport)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

func (b *Builder) defaultTransport() (http.RoundTripper, error) {
	httpTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// Fallback to whatever default transport is configured (e.g., a test stub)
		return http.DefaultTransport, nil
	}
	httpTransport = httpTransport.Clone()

	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		httpTransport.TLSClientConfig = tlsConfig
	} else {
		httpTransport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return httpTransport, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		// #nosec G304 - CA path is chosen by the caller
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// NewHTTPClient creates a client that authenticates with ts, using the default
// transport and timeout. For more options, use Builder.
//
// Example:
//
//	ts := flow.TokenSource(ctx, auth)
//	client := httpclient.NewHTTPClient(ts)
//	resp, err := client.Get("https://api.example.com/data")
func NewHTTPClient(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: NewBearerTransport(ts, nil),
		Timeout:   DefaultTimeout,
	}
}
