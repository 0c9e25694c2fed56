package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanjibates/saloon/internal/testutil"
	"github.com/kanjibates/saloon/oauth2flow"
)

type harness struct {
	app       *app
	out       *bytes.Buffer
	tokenFile string
	listener  net.Listener
	urls      chan string
}

func newHarness(t *testing.T, providerURL string) *harness {
	t.Helper()

	for _, key := range []string{"CLIENT_ID", "CLIENT_SECRET", "REDIRECT_URI", "BASE_URL"} {
		t.Setenv(EnvPrefix+key, "")
	}

	dir := t.TempDir()
	configFile := filepath.Join(dir, "saloon.yaml")
	config := fmt.Sprintf(`client_id: cli-client
client_secret: cli-secret
redirect_uri: http://127.0.0.1:18080/callback
base_url: %s
`, providerURL)
	require.NoError(t, os.WriteFile(configFile, []byte(config), 0o600))

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	out := &bytes.Buffer{}
	h := &harness{
		app:       newApp(out, io.Discard),
		out:       out,
		tokenFile: filepath.Join(dir, "token.json"),
		listener:  listener,
		urls:      make(chan string, 1),
	}
	h.app.listen = func(network, address string) (net.Listener, error) {
		assert.Equal(t, "127.0.0.1:18080", address)
		return listener, nil
	}
	h.app.showURL = func(u string) { h.urls <- u }
	h.app.configFile = configFile
	return h
}

func (h *harness) execute(ctx context.Context, args ...string) error {
	root := h.app.rootCommand()
	root.SetArgs(append([]string{"--config", h.app.configFile, "--token-file", h.tokenFile}, args...))
	root.SetOut(h.out)
	root.SetErr(io.Discard)
	return root.ExecuteContext(ctx)
}

// callback waits for the authorization URL and follows the redirect with code.
// tamper, when non-nil, replaces the state sent back.
func (h *harness) callback(t *testing.T, code string, tamper func(string) string) *http.Response {
	t.Helper()

	var authURL string
	select {
	case authURL = <-h.urls:
	case <-time.After(5 * time.Second):
		t.Fatal("authorization URL was not shown")
	}

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	if tamper != nil {
		state = tamper(state)
	}

	target := fmt.Sprintf("http://%s/callback?code=%s&state=%s", h.listener.Addr(), url.QueryEscape(code), url.QueryEscape(state))
	resp, err := http.Get(target)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func TestAuthorize(t *testing.T) {
	provider := testutil.NewProvider(t)
	h := newHarness(t, provider.URL())

	errs := make(chan error, 1)
	go func() { errs <- h.execute(context.Background(), "authorize", "--scope", "read:user") }()

	resp := h.callback(t, "the-code", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, <-errs)

	saved, err := oauth2flow.LoadAuthenticator(h.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "provider-access-token", saved.AccessToken)
	assert.Equal(t, "provider-refresh-token", saved.RefreshToken)

	forms := provider.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "authorization_code", forms[0].Get("grant_type"))
	assert.Equal(t, "the-code", forms[0].Get("code"))
	assert.Equal(t, "cli-client", forms[0].Get("client_id"))
	assert.Contains(t, h.out.String(), "Tokens written to")
}

func TestAuthorize_InvalidState(t *testing.T) {
	provider := testutil.NewProvider(t)
	h := newHarness(t, provider.URL())

	errs := make(chan error, 1)
	go func() { errs <- h.execute(context.Background(), "authorize") }()

	resp := h.callback(t, "the-code", func(string) string { return "forged" })
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	err := <-errs
	require.ErrorIs(t, err, oauth2flow.ErrInvalidState)
	assert.Equal(t, ExitCodeInvalidState, exitCode(err))
	assert.Empty(t, provider.Forms(), "no token request after a state mismatch")
	assert.NoFileExists(t, h.tokenFile)
}

func TestAuthorize_Timeout(t *testing.T) {
	h := newHarness(t, "https://auth.example.com")

	err := h.execute(context.Background(), "authorize", "--timeout", "50ms")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ExitCodeError, exitCode(err))
}

func TestAuthorize_ConfigError(t *testing.T) {
	h := newHarness(t, "https://auth.example.com")
	require.NoError(t, os.WriteFile(h.app.configFile, []byte("client_secret: only-secret\n"), 0o600))

	err := h.execute(context.Background(), "authorize")
	require.ErrorIs(t, err, oauth2flow.ErrInvalidConfig)
	assert.Equal(t, ExitCodeConfig, exitCode(err))

	t.Setenv(EnvPrefix+"CLIENT_ID", "from-env")
	t.Setenv(EnvPrefix+"REDIRECT_URI", "not a url")
	err = h.execute(context.Background(), "authorize")
	assert.Equal(t, ExitCodeConfig, exitCode(err))
}

func TestRefresh(t *testing.T) {
	provider := testutil.NewProvider(t)
	provider.TokenResponse = map[string]any{"access_token": "rotated", "expires_in": 60}
	h := newHarness(t, provider.URL())
	require.NoError(t, oauth2flow.SaveAuthenticator(h.tokenFile, oauth2flow.NewAuthenticator("old", "r1", time.Now().Add(-time.Hour))))

	require.NoError(t, h.execute(context.Background(), "refresh"))

	saved, err := oauth2flow.LoadAuthenticator(h.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "rotated", saved.AccessToken)
	assert.Equal(t, "r1", saved.RefreshToken)
	assert.Contains(t, h.out.String(), "Access token refreshed")

	forms := provider.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "refresh_token", forms[0].Get("grant_type"))
}

func TestRefresh_NotRefreshable(t *testing.T) {
	h := newHarness(t, "https://auth.example.com")
	require.NoError(t, oauth2flow.SaveAuthenticator(h.tokenFile, oauth2flow.NewAuthenticator("old", "", time.Time{})))

	err := h.execute(context.Background(), "refresh")
	assert.ErrorIs(t, err, oauth2flow.ErrNotRefreshable)
	assert.Equal(t, ExitCodeError, exitCode(err))
}

func TestWhoami(t *testing.T) {
	provider := testutil.NewProvider(t)
	h := newHarness(t, provider.URL())
	require.NoError(t, oauth2flow.SaveAuthenticator(h.tokenFile, oauth2flow.NewAuthenticator(provider.AccessToken, "", time.Time{})))

	require.NoError(t, h.execute(context.Background(), "whoami"))

	var user map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &user))
	assert.Equal(t, "test-user", user["login"])
	assert.Empty(t, provider.Forms())
}

func TestWhoami_RefreshesExpiredToken(t *testing.T) {
	provider := testutil.NewProvider(t)
	h := newHarness(t, provider.URL())
	require.NoError(t, oauth2flow.SaveAuthenticator(h.tokenFile, oauth2flow.NewAuthenticator("expired", "r1", time.Now().Add(-time.Minute))))

	require.NoError(t, h.execute(context.Background(), "whoami"))
	assert.Contains(t, h.out.String(), "test-user")

	saved, err := oauth2flow.LoadAuthenticator(h.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, provider.AccessToken, saved.AccessToken, "refreshed token is persisted")
}

func TestWhoami_Unauthorized(t *testing.T) {
	provider := testutil.NewProvider(t)
	h := newHarness(t, provider.URL())
	require.NoError(t, oauth2flow.SaveAuthenticator(h.tokenFile, oauth2flow.NewAuthenticator("wrong", "", time.Time{})))

	err := h.execute(context.Background(), "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDiscover(t *testing.T) {
	var server *httptest.Server
	server = testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/token",
			"userinfo_endpoint":      server.URL + "/userinfo",
			"jwks_uri":               server.URL + "/jwks",
		})
	}))
	h := newHarness(t, "https://unused.example.com")

	require.NoError(t, h.execute(context.Background(), "discover", "--issuer", server.URL))

	out := h.out.String()
	assert.Contains(t, out, "authorize_endpoint: "+server.URL+"/authorize")
	assert.Contains(t, out, "token_endpoint: "+server.URL+"/token")
	assert.Contains(t, out, "user_endpoint: "+server.URL+"/userinfo")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeSuccess, exitCode(nil))
	assert.Equal(t, ExitCodeError, exitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeInvalidState, exitCode(fmt.Errorf("wrapped: %w", oauth2flow.ErrInvalidState)))
	assert.Equal(t, ExitCodeConfig, exitCode(&configError{err: errors.New("bad yaml")}))
	assert.Equal(t, ExitCodeConfig, exitCode(&oauth2flow.ConfigValidationError{Field: "client id"}))
}

func TestRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--token-file", filepath.Join(t.TempDir(), "t.json"), "refresh", "--config", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr)

	assert.Equal(t, ExitCodeConfig, code)
	assert.Contains(t, stderr.String(), "command failed")
}

func TestLocalListen(t *testing.T) {
	_, err := localListen("tcp", "192.0.2.1:8080")
	assert.ErrorContains(t, err, "not a loopback address")

	l, err := localListen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
