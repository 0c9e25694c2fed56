package fake

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Response is an immutable fake HTTP response.
type Response struct {
	status  int
	headers http.Header
	body    Body
}

// ResponseOption configures a Response.
type ResponseOption func(*Response)

// WithStatus sets the status code. The default is 200.
func WithStatus(status int) ResponseOption {
	return func(r *Response) {
		r.status = status
	}
}

// WithHeader sets a single header, replacing any previous value for the key.
func WithHeader(key, value string) ResponseOption {
	return func(r *Response) {
		r.headers.Set(key, value)
	}
}

// WithHTTPHeader adds every value of every header in h.
func WithHTTPHeader(h http.Header) ResponseOption {
	return func(r *Response) {
		for k, values := range h {
			for _, v := range values {
				r.headers.Add(k, v)
			}
		}
	}
}

// WithHeaders sets several headers at once.
func WithHeaders(headers map[string]string) ResponseOption {
	return func(r *Response) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// New creates a fake response. The body variant is chosen by NewBody.
//
// Structured bodies add "Content-Type: application/json" unless a header option sets one.
func New(body any, opts ...ResponseOption) *Response {
	r := &Response{
		status:  http.StatusOK,
		headers: make(http.Header),
		body:    NewBody(body),
	}

	for _, opt := range opts {
		opt(r)
	}

	if ct := r.body.ContentType(); ct != "" && r.headers.Get("Content-Type") == "" {
		r.headers.Set("Content-Type", ct)
	}

	return r
}

// JSON is shorthand for New with a structured body.
func JSON(v any, opts ...ResponseOption) *Response {
	return New(JSONBody{Value: v}, opts...)
}

// Status returns the status code.
func (r *Response) Status() int {
	return r.status
}

// Headers returns a copy of the headers.
func (r *Response) Headers() http.Header {
	return r.headers.Clone()
}

// Body returns the body.
func (r *Response) Body() Body {
	return r.body
}

// HTTPResponse builds a fresh *http.Response for req from the fake.
func (r *Response) HTTPResponse(req *http.Request) (*http.Response, error) {
	contents, err := r.body.Contents()
	if err != nil {
		return nil, err
	}

	header := r.headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(contents)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		StatusCode:    r.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(contents)),
		ContentLength: int64(len(contents)),
		Request:       req,
	}, nil
}
