package oauth2flow

import (
	"log"
	"net/http"
	"time"
)

// Logger is an interface for optional logging in Flow.
// Implementations receive exchange and refresh events; tokens are never logged.
type Logger interface {
	Printf(format string, args ...any)
}

// Sender sends an HTTP request and returns its response. *http.Client satisfies it.
type Sender interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option is a functional option for configuring Flow.
type Option func(*Flow)

// WithSender sets the collaborator that sends token and user requests.
// Defaults to an *http.Client with a 30 second timeout.
func WithSender(sender Sender) Option {
	return func(f *Flow) {
		if sender != nil {
			f.sender = sender
		}
	}
}

// WithClock sets the time source used to compute token expiry.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithStateGenerator replaces the random state generator.
func WithStateGenerator(gen StateGenerator) Option {
	return func(f *Flow) {
		if gen != nil {
			f.generateState = gen
		}
	}
}

// WithLogger sets a custom logger for exchange and refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(f *Flow) {
		f.logger = log.Default()
	}
}

// AuthorizeOption configures a single authorization URL.
type AuthorizeOption func(*authorizeOptions)

type authorizeOptions struct {
	state     string
	separator string
	extra     map[string]string
}

// WithAuthorizationState uses state instead of a generated value.
func WithAuthorizationState(state string) AuthorizeOption {
	return func(o *authorizeOptions) {
		o.state = state
	}
}

// WithScopeSeparator overrides Config.ScopeSeparator for one URL.
func WithScopeSeparator(separator string) AuthorizeOption {
	return func(o *authorizeOptions) {
		o.separator = separator
	}
}

// WithQueryParam adds a provider specific query parameter such as "prompt" or "audience".
// The standard parameters cannot be overridden.
func WithQueryParam(key, value string) AuthorizeOption {
	return func(o *authorizeOptions) {
		if o.extra == nil {
			o.extra = make(map[string]string)
		}
		o.extra[key] = value
	}
}

// RequestOption configures a token or user request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	state         string
	expectedState string
	useStored     bool
	modifiers     []func(*http.Request)
}

// WithState checks the state returned on the callback against expectedState before
// the token exchange. An empty expectedState disables the check.
func WithState(callbackState, expectedState string) RequestOption {
	return func(o *requestOptions) {
		o.state = callbackState
		o.expectedState = expectedState
		o.useStored = false
	}
}

// WithCallbackState checks callbackState against the state this flow generated in
// its last AuthorizationURL call. It fails if no authorization URL was issued.
func WithCallbackState(callbackState string) RequestOption {
	return func(o *requestOptions) {
		o.state = callbackState
		o.useStored = true
	}
}

// WithRequestModifier registers a hook that can change the outgoing request,
// for example to add provider specific headers, before it is sent.
func WithRequestModifier(modify func(*http.Request)) RequestOption {
	return func(o *requestOptions) {
		if modify != nil {
			o.modifiers = append(o.modifiers, modify)
		}
	}
}

func applyRequestOptions(opts []RequestOption) *requestOptions {
	o := &requestOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
