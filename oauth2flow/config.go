package oauth2flow

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"github.com/kanjibates/saloon/internal/urlutil"
)

// Default endpoints, joined onto Config.BaseURL when the matching field is empty.
const (
	DefaultAuthorizeEndpoint = "authorize"
	DefaultTokenEndpoint     = "token"
	DefaultUserEndpoint      = "user"

	// DefaultScopeSeparator joins scopes in the authorization URL.
	DefaultScopeSeparator = " "
)

// Config describes an OAuth2 client registered with an authorization server.
//
// Endpoints may be absolute URLs or paths relative to BaseURL. A Flow copies its Config,
// so changing a Config after NewFlow does not affect the flow.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// BaseURL is joined with relative endpoints.
	BaseURL           string
	AuthorizeEndpoint string
	TokenEndpoint     string
	UserEndpoint      string

	// DefaultScopes are sent before the scopes requested per authorization.
	DefaultScopes []string
	// ScopeSeparator joins scopes. Defaults to a single space.
	ScopeSeparator string

	// AuthStyle chooses how client credentials reach the token endpoint.
	// oauth2.AuthStyleAutoDetect is treated as oauth2.AuthStyleInParams.
	AuthStyle oauth2.AuthStyle

	// UsePKCE adds an S256 code challenge to the authorization URL and the
	// matching code_verifier to the token exchange.
	UsePKCE bool
}

// Validate checks the fields every flow needs.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ClientID) == "":
		return &ConfigValidationError{Field: "client id"}
	case strings.TrimSpace(c.ClientSecret) == "":
		return &ConfigValidationError{Field: "client secret"}
	case strings.TrimSpace(c.RedirectURI) == "":
		return &ConfigValidationError{Field: "redirect uri"}
	}
	return nil
}

// AuthorizeURL returns the resolved authorization endpoint.
func (c Config) AuthorizeURL() string {
	return urlutil.Join(c.BaseURL, withDefault(c.AuthorizeEndpoint, DefaultAuthorizeEndpoint))
}

// TokenURL returns the resolved token endpoint.
func (c Config) TokenURL() string {
	return urlutil.Join(c.BaseURL, withDefault(c.TokenEndpoint, DefaultTokenEndpoint))
}

// UserURL returns the resolved user endpoint.
func (c Config) UserURL() string {
	return urlutil.Join(c.BaseURL, withDefault(c.UserEndpoint, DefaultUserEndpoint))
}

// Endpoint returns the resolved endpoints in golang.org/x/oauth2 form.
func (c Config) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   c.AuthorizeURL(),
		TokenURL:  c.TokenURL(),
		AuthStyle: c.authStyle(),
	}
}

// OAuth2Config converts the config for use with golang.org/x/oauth2 helpers.
func (c Config) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint:     c.Endpoint(),
		Scopes:       append([]string(nil), c.DefaultScopes...),
	}
}

func (c Config) separator() string {
	return withDefault(c.ScopeSeparator, DefaultScopeSeparator)
}

func (c Config) authStyle() oauth2.AuthStyle {
	if c.AuthStyle == oauth2.AuthStyleInHeader {
		return oauth2.AuthStyleInHeader
	}
	return oauth2.AuthStyleInParams
}

func (c Config) clone() Config {
	c.DefaultScopes = append([]string(nil), c.DefaultScopes...)
	return c
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// fileConfig is the YAML shape of a Config.
type fileConfig struct {
	ClientID          string   `yaml:"client_id"`
	ClientSecret      string   `yaml:"client_secret"`
	RedirectURI       string   `yaml:"redirect_uri"`
	BaseURL           string   `yaml:"base_url"`
	AuthorizeEndpoint string   `yaml:"authorize_endpoint"`
	TokenEndpoint     string   `yaml:"token_endpoint"`
	UserEndpoint      string   `yaml:"user_endpoint"`
	DefaultScopes     []string `yaml:"default_scopes"`
	ScopeSeparator    string   `yaml:"scope_separator"`
	AuthStyle         string   `yaml:"auth_style"`
	UsePKCE           bool     `yaml:"pkce"`
}

// ParseConfig decodes a YAML document into a Config.
//
// auth_style accepts "params" (default) or "header".
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("oauth2flow: parse config: %w", err)
	}

	cfg := Config{
		ClientID:          fc.ClientID,
		ClientSecret:      fc.ClientSecret,
		RedirectURI:       fc.RedirectURI,
		BaseURL:           fc.BaseURL,
		AuthorizeEndpoint: fc.AuthorizeEndpoint,
		TokenEndpoint:     fc.TokenEndpoint,
		UserEndpoint:      fc.UserEndpoint,
		DefaultScopes:     fc.DefaultScopes,
		ScopeSeparator:    fc.ScopeSeparator,
		UsePKCE:           fc.UsePKCE,
	}

	switch strings.ToLower(strings.TrimSpace(fc.AuthStyle)) {
	case "", "params":
		cfg.AuthStyle = oauth2.AuthStyleInParams
	case "header", "basic":
		cfg.AuthStyle = oauth2.AuthStyleInHeader
	default:
		return Config{}, fmt.Errorf("oauth2flow: parse config: unknown auth_style %q", fc.AuthStyle)
	}

	return cfg, nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	// #nosec G304 - config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("oauth2flow: read config: %w", err)
	}
	return ParseConfig(data)
}

// ApplyEnv overlays non-empty environment variables named prefix+"CLIENT_ID",
// prefix+"CLIENT_SECRET", prefix+"REDIRECT_URI" and prefix+"BASE_URL".
func (c Config) ApplyEnv(prefix string) Config {
	c.ClientID = GetEnv(prefix+"CLIENT_ID", c.ClientID)
	c.ClientSecret = GetEnv(prefix+"CLIENT_SECRET", c.ClientSecret)
	c.RedirectURI = GetEnv(prefix+"REDIRECT_URI", c.RedirectURI)
	c.BaseURL = GetEnv(prefix+"BASE_URL", c.BaseURL)
	return c
}

// GetEnv returns the value of envVar, or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
