// Package urlutil joins base URLs and endpoints the way API connectors expect.
package urlutil

import (
	"net/url"
	"strings"
)

// Join combines a base URL and an endpoint with exactly one slash between them.
//
// An endpoint that is already absolute (has a scheme and host) is returned unchanged,
// which lets callers override a connector's base URL per request. An empty base returns
// the endpoint and an empty endpoint returns the base.
func Join(baseURL, endpoint string) string {
	if IsAbsolute(endpoint) || baseURL == "" {
		return endpoint
	}
	if endpoint == "" {
		return baseURL
	}

	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// IsAbsolute reports whether raw is an absolute http(s) URL.
func IsAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// AppendQuery appends an encoded query string to rawURL, choosing "?" or "&"
// depending on whether rawURL already carries a query. A fragment stays at the end.
func AppendQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}

	base, fragment, hasFragment := strings.Cut(rawURL, "#")
	switch {
	case !strings.Contains(base, "?"):
		base += "?" + query
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
		base += query
	default:
		base += "&" + query
	}

	if hasFragment {
		return base + "#" + fragment
	}
	return base
}
