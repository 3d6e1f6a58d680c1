package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// DefaultTokenLength is the number of characters in a session token.
const DefaultTokenLength = 32

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var tokenAlphabetSize = big.NewInt(int64(len(tokenAlphabet)))

// NewSessionToken returns length characters drawn uniformly from a
// 62-symbol alphanumeric alphabet using crypto/rand.
func NewSessionToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid token length")
	}

	var b strings.Builder
	b.Grow(length)

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, tokenAlphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}

	return b.String(), nil
}
