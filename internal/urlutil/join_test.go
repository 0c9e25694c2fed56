package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		endpoint string
		want     string
	}{
		{name: "plain", base: "https://api.example.com", endpoint: "users", want: "https://api.example.com/users"},
		{name: "trailing and leading slash", base: "https://api.example.com/", endpoint: "/users", want: "https://api.example.com/users"},
		{name: "base with path", base: "https://api.example.com/v1", endpoint: "oauth/token", want: "https://api.example.com/v1/oauth/token"},
		{name: "absolute endpoint wins", base: "https://api.example.com", endpoint: "https://auth.example.com/token", want: "https://auth.example.com/token"},
		{name: "empty base", base: "", endpoint: "/token", want: "/token"},
		{name: "empty endpoint", base: "https://api.example.com", endpoint: "", want: "https://api.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.base, tt.endpoint))
		})
	}
}

func TestAppendQuery(t *testing.T) {
	assert.Equal(t, "https://a.example.com/auth?x=1", AppendQuery("https://a.example.com/auth", "x=1"))
	assert.Equal(t, "https://a.example.com/auth?tenant=t&x=1", AppendQuery("https://a.example.com/auth?tenant=t", "x=1"))
	assert.Equal(t, "https://a.example.com/auth?x=1", AppendQuery("https://a.example.com/auth?", "x=1"))
	assert.Equal(t, "https://a.example.com/auth", AppendQuery("https://a.example.com/auth", ""))
	assert.Equal(t, "https://a.example.com/auth?x=1#login", AppendQuery("https://a.example.com/auth#login", "x=1"))
	assert.Equal(t, "https://a.example.com/auth?tenant=t&x=1#a?b", AppendQuery("https://a.example.com/auth?tenant=t#a?b", "x=1"))
}

func TestIsAbsolute(t *testing.T) {
	assert.True(t, IsAbsolute("https://example.com/x"))
	assert.False(t, IsAbsolute("/x"))
	assert.False(t, IsAbsolute("token"))
	assert.False(t, IsAbsolute("://bad"))
}
