package oauth2flow

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// StateLength is the length of generated state values.
const StateLength = 32

// StateGenerator returns a random string of length n.
type StateGenerator func(n int) (string, error)

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// RandomString generates a cryptographically random alphanumeric string of length n.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("oauth2flow: invalid random string length: %d", n)
	}

	limit := big.NewInt(int64(len(letters)))
	b := make([]rune, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("oauth2flow: generate random string: %w", err)
		}
		b[i] = letters[num.Int64()]
	}
	return string(b), nil
}
