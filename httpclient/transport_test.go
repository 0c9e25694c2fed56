package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/kanjibates/saloon/fake"
	"github.com/kanjibates/saloon/internal/testutil"
	"github.com/kanjibates/saloon/oauth2flow"
)

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token endpoint down")
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, format)
}

func TestNewBearerTransport(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})

	transport := NewBearerTransport(ts, nil)
	assert.Equal(t, http.DefaultTransport, transport.Base)
	assert.Equal(t, ts, transport.Source)

	custom := &http.Transport{}
	assert.Equal(t, custom, NewBearerTransport(ts, custom).Base)
}

func TestBearerTransport_RoundTrip(t *testing.T) {
	mock := fake.NewMockTransport().On("*", fake.New("ok"))
	transport := NewBearerTransport(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}), mock)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/data", nil)
	require.NoError(t, err)
	req.Header.Set("X-Custom", "kept")

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sent := mock.LastRequest()
	assert.Equal(t, "Bearer abc", sent.Header.Get("Authorization"))
	assert.Equal(t, "kept", sent.Header.Get("X-Custom"))
	assert.Empty(t, req.Header.Get("Authorization"), "original request must not be modified")
}

func TestBearerTransport_Errors(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/data", nil)
	require.NoError(t, err)

	_, err = (&BearerTransport{}).RoundTrip(req)
	assert.ErrorContains(t, err, "token source is nil")

	_, err = NewBearerTransport(failingSource{}, fake.New("ok")).RoundTrip(req)
	assert.ErrorContains(t, err, "httpclient: failed to get token: token endpoint down")

	empty := oauth2.StaticTokenSource(&oauth2.Token{})
	_, err = NewBearerTransport(empty, fake.New("ok")).RoundTrip(req)
	assert.ErrorContains(t, err, "empty token")
}

func TestBearerTransport_RefreshesThroughFlow(t *testing.T) {
	provider := testutil.NewProvider(t)
	flow := oauth2flow.NewFlow(oauth2flow.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		BaseURL:      provider.URL(),
	})

	expired := oauth2flow.NewAuthenticator("expired", "r1", time.Now().Add(-time.Minute))
	api := fake.NewMockTransport().On("*", fake.New("ok"))
	transport := NewBearerTransport(flow.TokenSource(context.Background(), expired), api)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/data", nil)
	require.NoError(t, err)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer provider-access-token", api.LastRequest().Header.Get("Authorization"))
	forms := provider.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "r1", forms[0].Get("refresh_token"))
}

func TestBearerTransport_UsesRequestContext(t *testing.T) {
	flow := oauth2flow.NewFlow(oauth2flow.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		BaseURL:      "https://auth.example.com",
	}, oauth2flow.WithSender(&http.Client{Transport: testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, req.Context().Err()
	})}))

	expired := oauth2flow.NewAuthenticator("expired", "r1", time.Now().Add(-time.Minute))
	transport := NewBearerTransport(flow.TokenSource(context.Background(), expired), fake.New("ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/data", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoggingTransport(t *testing.T) {
	logger := &recordingLogger{}
	transport := NewLoggingTransport(fake.New("ok", fake.WithStatus(http.StatusAccepted)), logger)

	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/items?code=secret", nil)
	require.NoError(t, err)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, logger.lines, 1)
	assert.Equal(t, "httpclient: %s %s -> %d (took %v)", logger.lines[0])
	assert.Equal(t, "https://api.example.com/items", redactedURL(req))

	failing := NewLoggingTransport(fake.NewMockTransport(), logger)
	_, err = failing.RoundTrip(req)
	require.ErrorIs(t, err, fake.ErrNoMockMatch)
	require.Len(t, logger.lines, 2)
	assert.Contains(t, logger.lines[1], "failed")
}

func TestLoggingTransport_NilLogger(t *testing.T) {
	transport := NewLoggingTransport(fake.New("ok"), nil)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	require.NoError(t, err)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}))

	assert.Equal(t, DefaultTimeout, client.Timeout)
	transport, ok := client.Transport.(*BearerTransport)
	require.True(t, ok)
	assert.Equal(t, http.DefaultTransport, transport.Base)
}

func BenchmarkBearerTransport_RoundTrip(b *testing.B) {
	transport := NewBearerTransport(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"}), fake.New("ok"))
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/data", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := transport.RoundTrip(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
