package connector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/kanjibates/saloon/fake"
	"github.com/kanjibates/saloon/oauth2flow"
)

func readRequestBody(t *testing.T, req *http.Request) string {
	t.Helper()

	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	return string(data)
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, format)
}

func TestSend_Get(t *testing.T) {
	mock := fake.NewMockTransport().On("https://api.example.com/v1/users", fake.JSON([]string{"a", "b"}))
	logger := &recordingLogger{}
	c := New("https://api.example.com/v1/",
		WithSender(mock.Client()),
		WithHeader("X-Api-Version", "3"),
		WithLogger(logger),
	)

	resp, err := c.Send(context.Background(), Get("/users", url.Values{"page": {"2"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status())
	assert.JSONEq(t, `["a","b"]`, resp.String())

	req := mock.LastRequest()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "https://api.example.com/v1/users?page=2", req.URL.String())
	assert.Equal(t, "3", req.Header.Get("X-Api-Version"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Len(t, logger.lines, 1)
}

func TestSend_JSONBody(t *testing.T) {
	mock := fake.NewMockTransport().On("*/repos", fake.New("", fake.WithStatus(http.StatusCreated)))
	c := New("https://api.example.com", WithSender(mock.Client()))

	resp, err := c.Send(context.Background(), PostJSON("repos", map[string]any{"name": "saloon"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status())

	req := mock.LastRequest()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"saloon"}`, readRequestBody(t, req))
}

func TestSend_FormBodyAndHeaders(t *testing.T) {
	mock := fake.NewMockTransport().On("*", fake.New("ok"))
	c := New("https://api.example.com", WithSender(mock.Client()), WithHeader("Accept", "text/plain"))

	_, err := c.Send(context.Background(), Request{
		Method:   "put",
		Endpoint: "https://other.example.com/items/1",
		Form:     url.Values{"name": {"x"}},
		Headers:  map[string]string{"Accept": "application/xml"},
	})
	require.NoError(t, err)

	req := mock.LastRequest()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "other.example.com", req.URL.Host, "absolute endpoints bypass the base URL")
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/xml", req.Header.Get("Accept"))
	assert.Equal(t, "name=x", readRequestBody(t, req))
}

func TestSend_AmbiguousBody(t *testing.T) {
	mock := fake.NewMockTransport()
	c := New("https://api.example.com", WithSender(mock.Client()))

	_, err := c.Send(context.Background(), Request{JSON: map[string]any{}, Form: url.Values{}})
	assert.ErrorIs(t, err, ErrAmbiguousBody)
	assert.Equal(t, 0, mock.SentCount())
}

func TestSend_Authentication(t *testing.T) {
	mock := fake.NewMockTransport().On("*", fake.New("ok"))
	c := New("https://api.example.com",
		WithSender(mock.Client()),
		WithAuthenticator(oauth2flow.NewAuthenticator("first", "", time.Time{})),
	)

	_, err := c.Send(context.Background(), Get("/me", nil))
	require.NoError(t, err)
	assert.Equal(t, "Bearer first", mock.LastRequest().Header.Get("Authorization"))

	c.Authenticate(oauth2flow.NewAuthenticator("second", "", time.Time{}))
	_, err = c.Send(context.Background(), Get("/me", nil))
	require.NoError(t, err)
	assert.Equal(t, "Bearer second", mock.LastRequest().Header.Get("Authorization"))

	_, err = c.Send(context.Background(), Request{Endpoint: "/me", Headers: map[string]string{"Authorization": "Basic abc"}})
	require.NoError(t, err)
	assert.Equal(t, "Basic abc", mock.LastRequest().Header.Get("Authorization"), "explicit header wins")

	c.Authenticate(nil)
	_, err = c.Send(context.Background(), Get("/me", nil))
	require.NoError(t, err)
	assert.Empty(t, mock.LastRequest().Header.Get("Authorization"))
}

func TestSend_TokenSource(t *testing.T) {
	mock := fake.NewMockTransport().
		On("https://auth.example.com/token", fake.JSON(map[string]any{"access_token": "refreshed"})).
		On("https://api.example.com/*", fake.New("ok"))
	flow := oauth2flow.NewFlow(oauth2flow.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		BaseURL:      "https://auth.example.com",
	}, oauth2flow.WithSender(mock.Client()))

	expired := oauth2flow.NewAuthenticator("expired", "r1", time.Now().Add(-time.Hour))
	c := New("https://api.example.com",
		WithSender(mock.Client()),
		WithTokenSource(flow.TokenSource(context.Background(), expired)),
	)

	_, err := c.Send(context.Background(), Get("/me", nil))
	require.NoError(t, err)
	assert.True(t, mock.Sent("https://auth.example.com/token"))
	assert.Equal(t, "Bearer refreshed", mock.LastRequest().Header.Get("Authorization"))
}

func TestSend_TokenError(t *testing.T) {
	mock := fake.NewMockTransport().On("*", fake.New("ok"))
	c := New("https://api.example.com",
		WithSender(mock.Client()),
		WithTokenSource(failingSource{}),
	)

	_, err := c.Send(context.Background(), Get("/me", nil))
	assert.ErrorContains(t, err, "connector: get token")
	assert.Equal(t, 0, mock.SentCount())
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("no token")
}

func TestSend_TransportError(t *testing.T) {
	c := New("https://api.example.com", WithSender(fake.NewMockTransport().Client()))

	_, err := c.Send(context.Background(), Get("/me?token=secret", nil))
	require.ErrorIs(t, err, fake.ErrNoMockMatch)
	assert.Contains(t, err.Error(), "connector: GET https://api.example.com/me failed")
}

func TestSend_ErrorStatusIsNotAnError(t *testing.T) {
	mock := fake.NewMockTransport().On("*", fake.New(`{"message":"Not Found"}`, fake.WithStatus(http.StatusNotFound)))
	c := New("https://api.example.com", WithSender(mock.Client()))

	resp, err := c.Send(context.Background(), Get("/missing", nil))
	require.NoError(t, err)
	assert.True(t, resp.ClientError())
	assert.Error(t, resp.Throw())
}

func TestOAuth(t *testing.T) {
	_, err := New("https://api.example.com").OAuth()
	assert.ErrorIs(t, err, ErrNoOAuth)

	flow := oauth2flow.NewFlow(oauth2flow.Config{})
	oauth, err := New("https://api.example.com", WithOAuth(flow)).OAuth()
	require.NoError(t, err)
	assert.Equal(t, flow, oauth)
}

func TestNew_Defaults(t *testing.T) {
	c := New("https://api.example.com", WithSender(nil), WithAuthenticator(nil), WithLoggingEnabled())

	assert.Equal(t, "https://api.example.com", c.BaseURL())
	assert.NotNil(t, c.sender)
	assert.Nil(t, c.tokens)
	assert.NotNil(t, c.logger)
}
