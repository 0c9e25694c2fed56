package oauth2flow

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// tokenResponse is the JSON body returned by the token endpoint.
type tokenResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken *string            `json:"refresh_token"`
	ExpiresIn    *expirationSeconds `json:"expires_in"`
	TokenType    string             `json:"token_type"`
	Scope        string             `json:"scope"`
}

// maxExpiresIn is the largest expires_in that still fits a time.Duration.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// expirationSeconds accepts expires_in as a JSON number or a numeric string,
// since some providers quote it.
type expirationSeconds int64

func (e *expirationSeconds) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("oauth2flow: invalid expires_in %s", b)
		}
		n = json.Number(strings.TrimSpace(s))
	}

	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("oauth2flow: invalid expires_in %s", b)
		}
		i = int64(f)
	}
	*e = expirationSeconds(i)
	return nil
}

// authenticator builds an Authenticator issued at now. fallbackRefresh is kept when the
// response carries no refresh token, since not every provider rotates refresh tokens.
func (r tokenResponse) authenticator(now time.Time, fallbackRefresh string) (*Authenticator, error) {
	if r.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	a := &Authenticator{
		AccessToken:  r.AccessToken,
		RefreshToken: fallbackRefresh,
		TokenType:    r.TokenType,
		Scopes:       splitGrantedScopes(r.Scope),
	}
	if r.RefreshToken != nil && *r.RefreshToken != "" {
		a.RefreshToken = *r.RefreshToken
	}
	if r.ExpiresIn != nil && *r.ExpiresIn > 0 {
		a.Expiry = now.Add(time.Duration(min(int64(*r.ExpiresIn), maxExpiresIn)) * time.Second)
	}
	return a, nil
}

func splitGrantedScopes(scope string) []string {
	return normalizeScopes(strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ','
	}))
}
