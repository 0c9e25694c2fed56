package oauth2flow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every *ConfigValidationError.
	ErrInvalidConfig = errors.New("oauth2flow: invalid config")

	// ErrInvalidState indicates the callback state does not match the expected state.
	ErrInvalidState = errors.New("oauth2flow: invalid state")

	// ErrNotRefreshable indicates an authenticator without a refresh token was passed to a refresh.
	ErrNotRefreshable = errors.New("oauth2flow: authenticator is not refreshable")

	// ErrMissingAccessToken indicates the token endpoint answered without an access_token.
	ErrMissingAccessToken = errors.New("oauth2flow: token response has no access_token")

	// ErrInsufficientScope is matched by every *MissingScopesError.
	ErrInsufficientScope = errors.New("oauth2flow: insufficient scope")

	// ErrNotJWT indicates the access token is not a JWT, so it carries no readable claims.
	ErrNotJWT = errors.New("oauth2flow: access token is not a JWT")
)

// ConfigValidationError names the first required config field that is missing.
type ConfigValidationError struct {
	Field string
}

// Error implements error.
func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("oauth2flow: invalid config: %s is required", e.Field)
}

// Is enables errors.Is(err, ErrInvalidConfig).
func (e *ConfigValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// MissingScopesError lists required scopes the token was not granted.
type MissingScopesError struct {
	Missing []string
}

// Error implements error.
func (e *MissingScopesError) Error() string {
	return fmt.Sprintf("oauth2flow: missing required scopes %v", e.Missing)
}

// Is enables errors.Is(err, ErrInsufficientScope).
func (e *MissingScopesError) Is(target error) bool {
	return target == ErrInsufficientScope
}

// stateMismatchError keeps the compared values out of the message.
func stateMismatchError(got, expected string) error {
	if got == "" {
		return fmt.Errorf("%w: callback state is empty", ErrInvalidState)
	}
	return fmt.Errorf("%w: callback state (%d chars) does not match expected state (%d chars)", ErrInvalidState, len(got), len(expected))
}
