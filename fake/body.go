package fake

import (
	"encoding/json"
	"fmt"
)

// Body is the contents of a fake response.
type Body interface {
	// Contents returns the encoded body.
	Contents() ([]byte, error)
	// IsEmpty reports whether the body has no contents.
	IsEmpty() bool
	// ContentType returns the media type implied by the body, or "" if none.
	ContentType() string
}

// JSONBody is a structured body serialized as JSON.
type JSONBody struct {
	Value any
}

// Contents implements Body.
func (b JSONBody) Contents() ([]byte, error) {
	data, err := json.Marshal(b.Value)
	if err != nil {
		return nil, fmt.Errorf("fake: encode json body: %w", err)
	}
	return data, nil
}

// IsEmpty implements Body.
func (b JSONBody) IsEmpty() bool {
	return b.Value == nil
}

// ContentType implements Body.
func (JSONBody) ContentType() string {
	return "application/json"
}

// StringBody is a raw body passed through unchanged.
type StringBody string

// Contents implements Body.
func (b StringBody) Contents() ([]byte, error) {
	return []byte(b), nil
}

// IsEmpty implements Body.
func (b StringBody) IsEmpty() bool {
	return b == ""
}

// ContentType implements Body.
func (StringBody) ContentType() string {
	return ""
}

// NewBody selects the body variant for v.
//
// Strings and byte slices become a StringBody, nil becomes an empty StringBody,
// an existing Body is returned as is, and every other value becomes a JSONBody.
func NewBody(v any) Body {
	switch b := v.(type) {
	case nil:
		return StringBody("")
	case Body:
		return b
	case string:
		return StringBody(b)
	case []byte:
		return StringBody(b)
	default:
		return JSONBody{Value: b}
	}
}
