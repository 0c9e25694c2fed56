// Package response wraps *http.Response in a buffered value that is safe to inspect repeatedly.
//
// A Response exposes the status, headers and body, a set of status predicates, JSON helpers and
// Throw, which turns a 4xx/5xx response into an *Error. *Error matches the sentinel errors of this
// package through errors.Is, so callers can branch on the class or the exact status:
//
//	resp, err := response.New(httpResp)
//	if err != nil {
//	    return err
//	}
//	if err := resp.Throw(); errors.Is(err, response.ErrUnauthorized) {
//	    // re-authenticate
//	}
package response
