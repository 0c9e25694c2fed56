package oauth2flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomString(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		s, err := RandomString(StateLength)
		require.NoError(t, err)
		assert.Len(t, s, StateLength)
		assert.Regexp(t, "^[a-zA-Z0-9]+$", s)
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, 50)

	_, err := RandomString(0)
	assert.Error(t, err)
}
