package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/kanjibates/saloon/internal/urlutil"
	"github.com/kanjibates/saloon/oauth2flow"
	"github.com/kanjibates/saloon/response"
)

var (
	// ErrNoOAuth is returned by OAuth when the connector has no OAuth2 flow.
	ErrNoOAuth = errors.New("connector: no OAuth2 flow configured")

	// ErrAmbiguousBody is returned when a request sets both JSON and Form.
	ErrAmbiguousBody = errors.New("connector: request sets both JSON and Form")
)

// Logger is an interface for optional logging in Connector.
type Logger interface {
	Printf(format string, args ...any)
}

// Sender sends an HTTP request. *http.Client and fake.MockTransport.Client() satisfy it.
type Sender interface {
	Do(req *http.Request) (*http.Response, error)
}

// contextTokenSource is implemented by oauth2flow.RefreshingTokenSource.
type contextTokenSource interface {
	TokenWithContext(ctx context.Context) (*oauth2.Token, error)
}

// Connector holds everything shared by the requests to one API: the base URL,
// default headers, credentials and an optional OAuth2 flow.
type Connector struct {
	baseURL string
	sender  Sender
	headers http.Header
	oauth   oauth2flow.TokenExchanger
	logger  Logger

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

// Option is a functional option for configuring Connector.
type Option func(*Connector)

// WithSender sets the collaborator that sends requests.
// Defaults to an *http.Client with a 30 second timeout.
func WithSender(sender Sender) Option {
	return func(c *Connector) {
		if sender != nil {
			c.sender = sender
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Connector) {
		c.headers.Set(key, value)
	}
}

// WithAuthenticator authenticates every request with a's access token.
func WithAuthenticator(a *oauth2flow.Authenticator) Option {
	return func(c *Connector) {
		if a != nil {
			c.tokens = a
		}
	}
}

// WithTokenSource authenticates every request with tokens from ts,
// for example a refreshing source from oauth2flow.Flow.TokenSource.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Connector) {
		c.tokens = ts
	}
}

// WithOAuth attaches the authorization code flow returned by OAuth.
func WithOAuth(flow oauth2flow.TokenExchanger) Option {
	return func(c *Connector) {
		c.oauth = flow
	}
}

// WithLogger sets a custom logger for sent requests.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(c *Connector) {
		c.logger = log.Default()
	}
}

// New creates a connector for the API at baseURL.
func New(baseURL string, opts ...Option) *Connector {
	c := &Connector{
		baseURL: baseURL,
		sender:  &http.Client{Timeout: 30 * time.Second},
		headers: make(http.Header),
	}
	c.headers.Set("Accept", "application/json")

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the base URL requests are resolved against.
func (c *Connector) BaseURL() string {
	return c.baseURL
}

// OAuth returns the connector's OAuth2 flow, or ErrNoOAuth.
func (c *Connector) OAuth() (oauth2flow.TokenExchanger, error) {
	if c.oauth == nil {
		return nil, ErrNoOAuth
	}
	return c.oauth, nil
}

// Authenticate replaces the credentials used by later requests. A nil
// authenticator removes them.
func (c *Connector) Authenticate(a *oauth2flow.Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a == nil {
		c.tokens = nil
		return
	}
	c.tokens = a
}

// Send builds the request, applies default headers and credentials and returns the
// response. Non-2xx responses are returned without error; use Response.Throw.
func (c *Connector) Send(ctx context.Context, r Request) (*response.Response, error) {
	req, err := c.build(ctx, r)
	if err != nil {
		return nil, err
	}

	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.sender.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connector: %s %s failed: %w", req.Method, withoutQuery(req.URL), err)
	}

	resp, err := response.New(httpResp)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Printf("connector: %s %s -> %d (took %v)", req.Method, req.URL.Path, resp.Status(), time.Since(start))
	}
	return resp, nil
}

func (c *Connector) build(ctx context.Context, r Request) (*http.Request, error) {
	if r.JSON != nil && r.Form != nil {
		return nil, ErrAmbiguousBody
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := urlutil.Join(c.baseURL, r.Endpoint)
	if len(r.Query) > 0 {
		target = urlutil.AppendQuery(target, r.Query.Encode())
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("connector: encode JSON body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, body)
	if err != nil {
		return nil, fmt.Errorf("connector: build request: %w", err)
	}

	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func (c *Connector) authorize(ctx context.Context, req *http.Request) error {
	c.mu.RLock()
	tokens := c.tokens
	c.mu.RUnlock()

	if tokens == nil || req.Header.Get("Authorization") != "" {
		return nil
	}

	var token *oauth2.Token
	var err error
	if cs, ok := tokens.(contextTokenSource); ok {
		token, err = cs.TokenWithContext(ctx)
	} else {
		token, err = tokens.Token()
	}
	if err != nil {
		return fmt.Errorf("connector: get token: %w", err)
	}

	token.SetAuthHeader(req)
	return nil
}

// withoutQuery drops the query, which may carry credentials.
func withoutQuery(u *url.URL) string {
	stripped := *u
	stripped.RawQuery = ""
	return stripped.Redacted()
}

// Request describes one call to the API.
type Request struct {
	// Method defaults to GET.
	Method string
	// Endpoint is joined with the base URL unless it is absolute.
	Endpoint string
	Query    url.Values
	// Headers override the connector's default headers.
	Headers map[string]string

	// JSON is encoded as the request body. Mutually exclusive with Form.
	JSON any
	// Form is sent URL encoded. Mutually exclusive with JSON.
	Form url.Values
}

// Get is shorthand for a GET request to endpoint.
func Get(endpoint string, query url.Values) Request {
	return Request{Method: http.MethodGet, Endpoint: endpoint, Query: query}
}

// PostJSON is shorthand for a POST request with a JSON body.
func PostJSON(endpoint string, body any) Request {
	return Request{Method: http.MethodPost, Endpoint: endpoint, JSON: body}
}
