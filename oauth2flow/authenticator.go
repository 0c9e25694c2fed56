package oauth2flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Authenticator holds the tokens issued by an authorization code exchange or refresh.
//
// A zero Expiry means the server did not report one; such an authenticator never expires.
type Authenticator struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	TokenType    string    `json:"token_type,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// NewAuthenticator creates an authenticator. refreshToken may be empty and expiry may be zero.
func NewAuthenticator(accessToken, refreshToken string, expiry time.Time) *Authenticator {
	return &Authenticator{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
	}
}

// IsRefreshable reports whether the authenticator carries a refresh token.
func (a *Authenticator) IsRefreshable() bool {
	return a != nil && a.RefreshToken != ""
}

// HasExpired reports whether the access token has expired. Without a known expiry it never expires.
func (a *Authenticator) HasExpired() bool {
	return a.ExpiredAt(time.Now())
}

// HasNotExpired is the negation of HasExpired.
func (a *Authenticator) HasNotExpired() bool {
	return !a.HasExpired()
}

// ExpiredAt reports whether the access token is expired at t.
func (a *Authenticator) ExpiredAt(t time.Time) bool {
	if a.Expiry.IsZero() {
		return false
	}
	return !t.Before(a.Expiry)
}

// OAuth2Token converts the authenticator to a golang.org/x/oauth2 token.
func (a *Authenticator) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  a.AccessToken,
		TokenType:    a.TokenType,
		RefreshToken: a.RefreshToken,
		Expiry:       a.Expiry,
	}
}

// Token implements oauth2.TokenSource with the authenticator's current token.
// It never refreshes; see Flow.TokenSource for that.
func (a *Authenticator) Token() (*oauth2.Token, error) {
	if a == nil || a.AccessToken == "" {
		return nil, errors.New("oauth2flow: authenticator has no access token")
	}
	return a.OAuth2Token(), nil
}

// Apply sets the Authorization header of req. The token type defaults to Bearer.
func (a *Authenticator) Apply(req *http.Request) {
	a.OAuth2Token().SetAuthHeader(req)
}

// HasScopes reports whether the granted scopes satisfy required under mode.
// Granted scopes come from the token response, or from the scope/scp claims of a
// JWT access token when the response listed none.
func (a *Authenticator) HasScopes(mode ScopeMatchMode, required ...string) bool {
	return a.RequireScopes(mode, required...) == nil
}

// RequireScopes is HasScopes returning a *MissingScopesError.
func (a *Authenticator) RequireScopes(mode ScopeMatchMode, required ...string) error {
	missing := missingScopes(a.GrantedScopes(), required, mode)
	if len(missing) == 0 {
		return nil
	}
	return &MissingScopesError{Missing: missing}
}

// GrantedScopes returns the scopes the token was granted, if known.
func (a *Authenticator) GrantedScopes() []string {
	if len(a.Scopes) > 0 {
		return normalizeScopes(a.Scopes)
	}

	claims, err := a.Claims()
	if err != nil {
		return nil
	}
	var scopes []string
	for _, key := range []string{"scope", "scp"} {
		if value, ok := claims[key]; ok {
			scopes = append(scopes, scopesFromClaim(value)...)
		}
	}
	return normalizeScopes(scopes)
}

// Claims decodes the claims of a JWT access token without verifying its signature.
// The resource server is responsible for verification; the client only reads them.
func (a *Authenticator) Claims() (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(a.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}
	return claims, nil
}

// ParseAuthenticator decodes an authenticator previously encoded with encoding/json.
func ParseAuthenticator(data []byte) (*Authenticator, error) {
	var a Authenticator
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("oauth2flow: decode authenticator: %w", err)
	}
	if a.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	return &a, nil
}

// LoadAuthenticator reads an authenticator from a JSON file.
func LoadAuthenticator(path string) (*Authenticator, error) {
	// #nosec G304 - token file path is chosen by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("oauth2flow: read authenticator: %w", err)
	}
	return ParseAuthenticator(data)
}

// SaveAuthenticator writes a to path as JSON with owner-only permissions.
func SaveAuthenticator(path string, a *Authenticator) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("oauth2flow: encode authenticator: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("oauth2flow: create token directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("oauth2flow: write authenticator: %w", err)
	}
	return nil
}
