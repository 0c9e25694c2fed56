package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Response is a buffered HTTP response.
//
// The body is read fully and the underlying stream closed when the Response is created,
// so the body can be inspected any number of times.
type Response struct {
	raw  *http.Response
	body []byte
}

// New reads and closes resp.Body and wraps the result.
func New(resp *http.Response) (*Response, error) {
	if resp == nil {
		return nil, errors.New("response: nil http response")
	}

	var body []byte
	if resp.Body != nil {
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("response: read body: %w", err)
		}
		body = b
	}

	return &Response{raw: resp, body: body}, nil
}

// Status returns the HTTP status code.
func (r *Response) Status() int {
	return r.raw.StatusCode
}

// Header returns the response headers.
func (r *Response) Header() http.Header {
	if r.raw.Header == nil {
		return http.Header{}
	}
	return r.raw.Header
}

// Body returns the raw body bytes.
func (r *Response) Body() []byte {
	return r.body
}

// String returns the body as a string.
func (r *Response) String() string {
	return string(r.body)
}

// Request returns the request that produced this response, if known.
func (r *Response) Request() *http.Request {
	return r.raw.Request
}

// Raw returns the wrapped *http.Response. Its Body has already been consumed.
func (r *Response) Raw() *http.Response {
	return r.raw
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if len(r.body) == 0 {
		return errors.New("response: empty body")
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("response: decode json: %w", err)
	}
	return nil
}

// Object decodes the body into a loosely typed map.
func (r *Response) Object() (map[string]any, error) {
	var out map[string]any
	if err := r.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Successful reports a 2xx status.
func (r *Response) Successful() bool {
	return r.Status() >= 200 && r.Status() < 300
}

// OK reports a 200 status.
func (r *Response) OK() bool {
	return r.Status() == http.StatusOK
}

// Redirect reports a 3xx status.
func (r *Response) Redirect() bool {
	return r.Status() >= 300 && r.Status() < 400
}

// Failed reports a 4xx or 5xx status.
func (r *Response) Failed() bool {
	return r.ClientError() || r.ServerError()
}

// ClientError reports a 4xx status.
func (r *Response) ClientError() bool {
	return r.Status() >= 400 && r.Status() < 500
}

// ServerError reports a 5xx status.
func (r *Response) ServerError() bool {
	return r.Status() >= 500
}

// Throw returns an *Error when the response failed and nil otherwise.
func (r *Response) Throw() error {
	if !r.Failed() {
		return nil
	}
	return &Error{Response: r}
}
