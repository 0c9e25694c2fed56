package fake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

// ErrNoMockMatch is returned when no mocked response matches a request.
var ErrNoMockMatch = errors.New("fake: no mock response matches request")

// RoundTrip lets a fake Response act directly as an http.RoundTripper.
func (r *Response) RoundTrip(req *http.Request) (*http.Response, error) {
	return r.HTTPResponse(req)
}

// ResponderFunc adapts a function to http.RoundTripper so a mock can compute a response.
type ResponderFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f.
func (f ResponderFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type route struct {
	pattern   string
	matcher   *regexp.Regexp
	responder http.RoundTripper
}

// MockTransport is an http.RoundTripper that answers requests with fakes.
//
// Responses are taken from the queue first, in FIFO order, and then from the
// registered URL patterns, first registered first matched. Every request is
// recorded, with its body buffered so tests can read it afterwards.
// MockTransport is safe for concurrent use.
type MockTransport struct {
	mu       sync.Mutex
	queue    []http.RoundTripper
	routes   []route
	requests []*http.Request
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// On registers responder for requests whose URL matches pattern.
//
// A pattern is matched against the full URL, the URL without its query and the path.
// "*" matches any run of characters, so "https://api.example.com/users/*" and "*/token"
// are valid patterns.
func (m *MockTransport) On(pattern string, responder http.RoundTripper) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routes = append(m.routes, route{
		pattern:   pattern,
		matcher:   compilePattern(pattern),
		responder: responder,
	})
	return m
}

// Queue appends responders that are consumed one per request, in order.
func (m *MockTransport) Queue(responders ...http.RoundTripper) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = append(m.queue, responders...)
	return m
}

// Client returns an *http.Client that uses the mock.
func (m *MockTransport) Client() *http.Client {
	return &http.Client{Transport: m}
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := m.record(req); err != nil {
		return nil, err
	}

	responder := m.next(req)
	if responder == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNoMockMatch, req.Method, req.URL.Redacted())
	}

	return responder.RoundTrip(req)
}

func (m *MockTransport) next(req *http.Request) http.RoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) > 0 {
		responder := m.queue[0]
		m.queue = m.queue[1:]
		return responder
	}

	for _, r := range m.routes {
		if matchRequest(r.matcher, req) {
			return r.responder
		}
	}
	return nil
}

func (m *MockTransport) record(req *http.Request) error {
	recorded := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("fake: read request body: %w", err)
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		recorded.Body = io.NopCloser(bytes.NewReader(body))
		recorded.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, recorded)
	m.mu.Unlock()
	return nil
}

// Requests returns the recorded requests in the order they were sent.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil if none was sent.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// SentCount returns how many requests were sent.
func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Sent reports whether any recorded request matches pattern.
func (m *MockTransport) Sent(pattern string) bool {
	matcher := compilePattern(pattern)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, req := range m.requests {
		if matchRequest(matcher, req) {
			return true
		}
	}
	return false
}

// Reset forgets recorded requests and queued responders. Routes are kept.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = nil
	m.queue = nil
}

func compilePattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

func matchRequest(matcher *regexp.Regexp, req *http.Request) bool {
	if req.URL == nil {
		return false
	}

	withoutQuery := *req.URL
	withoutQuery.RawQuery = ""

	return matcher.MatchString(req.URL.String()) ||
		matcher.MatchString(withoutQuery.String()) ||
		matcher.MatchString(req.URL.Path)
}
