package oauth2flow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/kanjibates/saloon/internal/urlutil"
	"github.com/kanjibates/saloon/response"
)

// DefaultHTTPTimeout is the timeout of the default Sender.
const DefaultHTTPTimeout = 30 * time.Second

// TokenExchanger is the OAuth2 authorization code capability an API client delegates to.
type TokenExchanger interface {
	AuthorizationURL(scopes []string, opts ...AuthorizeOption) (string, error)
	AccessToken(ctx context.Context, code string, opts ...RequestOption) (*Authenticator, error)
	Refresh(ctx context.Context, a *Authenticator, opts ...RequestOption) (*Authenticator, error)
	RefreshToken(ctx context.Context, refreshToken string, opts ...RequestOption) (*Authenticator, error)
	User(ctx context.Context, a *Authenticator, opts ...RequestOption) (*response.Response, error)
}

var _ TokenExchanger = (*Flow)(nil)

// Flow runs the OAuth2 authorization code grant for one client.
//
// The generated state (and PKCE verifier) belong to the instance: use one Flow per
// in-flight authorization when several users authorize concurrently.
type Flow struct {
	config        Config
	sender        Sender
	now           func() time.Time
	generateState StateGenerator
	logger        Logger // optional logger

	mu           sync.Mutex
	state        string
	codeVerifier string
}

// NewFlow creates a flow for cfg. The config is copied and validated on every operation.
func NewFlow(cfg Config, opts ...Option) *Flow {
	f := &Flow{
		config:        cfg.clone(),
		sender:        &http.Client{Timeout: DefaultHTTPTimeout},
		now:           time.Now,
		generateState: RandomString,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Config returns a copy of the flow's config.
func (f *Flow) Config() Config {
	return f.config.clone()
}

// State returns the state generated or supplied by the last AuthorizationURL call.
func (f *Flow) State() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// CodeVerifier returns the PKCE verifier of the last AuthorizationURL call, or "".
func (f *Flow) CodeVerifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codeVerifier
}

// AuthorizationURL builds the URL the user is sent to for consent.
//
// The default scopes are followed by scopes, joined by the scope separator. Without
// WithAuthorizationState a random state of StateLength characters is generated. The
// state is stored on the flow for the callback check.
func (f *Flow) AuthorizationURL(scopes []string, opts ...AuthorizeOption) (string, error) {
	if err := f.config.Validate(); err != nil {
		return "", err
	}

	o := &authorizeOptions{separator: f.config.separator()}
	for _, opt := range opts {
		opt(o)
	}

	state := o.state
	if state == "" {
		generated, err := f.generateState(StateLength)
		if err != nil {
			return "", err
		}
		state = generated
	}

	query := url.Values{}
	for key, value := range o.extra {
		query.Set(key, value)
	}
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(mergeScopes(f.config.DefaultScopes, scopes), o.separator))
	query.Set("client_id", f.config.ClientID)
	query.Set("redirect_uri", f.config.RedirectURI)
	query.Set("state", state)

	verifier := ""
	if f.config.UsePKCE {
		verifier = oauth2.GenerateVerifier()
		query.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
		query.Set("code_challenge_method", "S256")
	}

	f.mu.Lock()
	f.state = state
	f.codeVerifier = verifier
	f.mu.Unlock()

	return urlutil.AppendQuery(f.config.AuthorizeURL(), query.Encode()), nil
}

// AccessToken exchanges an authorization code for an Authenticator.
// Any non-2xx response, redirects included, is returned as *response.Error.
func (f *Flow) AccessToken(ctx context.Context, code string, opts ...RequestOption) (*Authenticator, error) {
	resp, err := f.AccessTokenResponse(ctx, code, opts...)
	if err != nil {
		return nil, err
	}

	a, err := f.decode(resp, "")
	if err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Printf("oauth2flow: exchanged authorization code (expires: %s, refreshable: %t)", formatExpiry(a.Expiry), a.IsRefreshable())
	}
	return a, nil
}

// AccessTokenResponse performs the exchange and returns the token endpoint response
// untouched, without checking its status.
func (f *Flow) AccessTokenResponse(ctx context.Context, code string, opts ...RequestOption) (*response.Response, error) {
	if err := f.config.Validate(); err != nil {
		return nil, err
	}

	o := applyRequestOptions(opts)
	if err := f.checkState(o); err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {f.config.RedirectURI},
	}
	if f.config.UsePKCE {
		if verifier := f.CodeVerifier(); verifier != "" {
			form.Set("code_verifier", verifier)
		}
	}

	return f.tokenRequest(ctx, form, o)
}

// Refresh obtains a new Authenticator with a's refresh token. It fails with
// ErrNotRefreshable, before any request, when a has no refresh token.
func (f *Flow) Refresh(ctx context.Context, a *Authenticator, opts ...RequestOption) (*Authenticator, error) {
	if !a.IsRefreshable() {
		return nil, ErrNotRefreshable
	}
	return f.RefreshToken(ctx, a.RefreshToken, opts...)
}

// RefreshToken obtains a new Authenticator from a raw refresh token. When the response
// carries no refresh token, refreshToken is kept on the result.
func (f *Flow) RefreshToken(ctx context.Context, refreshToken string, opts ...RequestOption) (*Authenticator, error) {
	resp, err := f.RefreshResponse(ctx, refreshToken, opts...)
	if err != nil {
		return nil, err
	}

	a, err := f.decode(resp, refreshToken)
	if err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Printf("oauth2flow: refreshed access token (expires: %s)", formatExpiry(a.Expiry))
	}
	return a, nil
}

// RefreshResponse performs the refresh and returns the token endpoint response untouched.
func (f *Flow) RefreshResponse(ctx context.Context, refreshToken string, opts ...RequestOption) (*response.Response, error) {
	if err := f.config.Validate(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, ErrNotRefreshable
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return f.tokenRequest(ctx, form, applyRequestOptions(opts))
}

// User fetches the authenticated user from the user endpoint and returns the response as is.
func (f *Flow) User(ctx context.Context, a *Authenticator, opts ...RequestOption) (*response.Response, error) {
	if a == nil || a.AccessToken == "" {
		return nil, errors.New("oauth2flow: user request needs an access token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.UserURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("oauth2flow: build user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	a.Apply(req)

	return f.send(req, applyRequestOptions(opts))
}

// checkState compares the callback state with the expected one. A supplied expected
// state must match exactly; an empty callback state does not bypass the check.
func (f *Flow) checkState(o *requestOptions) error {
	expected := o.expectedState
	if o.useStored {
		expected = f.State()
		if expected == "" {
			return fmt.Errorf("%w: no authorization state was issued by this flow", ErrInvalidState)
		}
	}
	if expected == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(o.state), []byte(expected)) != 1 {
		return stateMismatchError(o.state, expected)
	}
	return nil
}

func (f *Flow) tokenRequest(ctx context.Context, form url.Values, o *requestOptions) (*response.Response, error) {
	if f.config.authStyle() == oauth2.AuthStyleInParams {
		form.Set("client_id", f.config.ClientID)
		form.Set("client_secret", f.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth2flow: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if f.config.authStyle() == oauth2.AuthStyleInHeader {
		req.SetBasicAuth(url.QueryEscape(f.config.ClientID), url.QueryEscape(f.config.ClientSecret))
	}

	return f.send(req, o)
}

func (f *Flow) send(req *http.Request, o *requestOptions) (*response.Response, error) {
	for _, modify := range o.modifiers {
		modify(req)
	}

	httpResp, err := f.sender.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth2flow: request to %s failed: %w", req.URL.Redacted(), err)
	}

	return response.New(httpResp)
}

func (f *Flow) decode(resp *response.Response, fallbackRefresh string) (*Authenticator, error) {
	if !resp.Successful() {
		return nil, &response.Error{Response: resp}
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("%w: token endpoint answered %d with an empty body", ErrMissingAccessToken, resp.Status())
	}

	var body tokenResponse
	if err := resp.JSON(&body); err != nil {
		return nil, fmt.Errorf("oauth2flow: decode token response: %w", err)
	}
	return body.authenticator(f.now(), fallbackRefresh)
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
