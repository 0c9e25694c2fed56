package response

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	ErrClientError        = errors.New("response: client error")
	ErrServerError        = errors.New("response: server error")
	ErrUnauthorized       = errors.New("response: unauthorized")
	ErrForbidden          = errors.New("response: forbidden")
	ErrNotFound           = errors.New("response: not found")
	ErrTooManyRequests    = errors.New("response: too many requests")
	ErrUnprocessable      = errors.New("response: unprocessable entity")
	ErrInternalServer     = errors.New("response: internal server error")
	ErrServiceUnavailable = errors.New("response: service unavailable")
	ErrGatewayTimeout     = errors.New("response: gateway timeout")

	// ErrUnexpectedStatus matches an *Error for a status that is neither 2xx nor 4xx/5xx.
	ErrUnexpectedStatus = errors.New("response: unexpected status")
)

var statusSentinels = map[int]error{
	http.StatusUnauthorized:        ErrUnauthorized,
	http.StatusForbidden:           ErrForbidden,
	http.StatusNotFound:            ErrNotFound,
	http.StatusTooManyRequests:     ErrTooManyRequests,
	http.StatusUnprocessableEntity: ErrUnprocessable,
	http.StatusInternalServerError: ErrInternalServer,
	http.StatusServiceUnavailable:  ErrServiceUnavailable,
	http.StatusGatewayTimeout:      ErrGatewayTimeout,
}

// maxErrorBody bounds how much of the body is echoed in Error().
const maxErrorBody = 256

// Error is returned by Throw for 4xx and 5xx responses. Callers that need a 2xx
// response may also wrap 1xx and 3xx responses in it.
type Error struct {
	Response *Response
}

// Error implements error.
func (e *Error) Error() string {
	body := e.Response.String()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}

	msg := fmt.Sprintf("response: request failed with status %d %s", e.Response.Status(), http.StatusText(e.Response.Status()))
	if req := e.Response.Request(); req != nil && req.URL != nil {
		u := *req.URL
		u.User = nil
		u.RawQuery = ""
		msg = fmt.Sprintf("%s (%s %s)", msg, req.Method, u.String())
	}
	if body != "" {
		msg += ": " + body
	}
	return msg
}

// Status returns the failed response's status code.
func (e *Error) Status() int {
	return e.Response.Status()
}

// Is matches the class sentinel (ErrClientError, ErrServerError or
// ErrUnexpectedStatus) and the status specific sentinel, if any.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrClientError:
		return e.Response.ClientError()
	case ErrServerError:
		return e.Response.ServerError()
	case ErrUnexpectedStatus:
		return !e.Response.Successful() && !e.Response.Failed()
	}
	sentinel, ok := statusSentinels[e.Response.Status()]
	return ok && sentinel == target
}
