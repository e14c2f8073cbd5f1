package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// passwordChars is the alphabet for generated passwords. Ambiguous glyphs
// (0/O, 1/l/I) are excluded.
var passwordChars = []rune("23456789abcdefghjkmnpqrstvwxyzABCDEFGHJKLMNPQRSTVWXYZ!@#$%^&*-_=+")

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// RandomHex returns a hex-encoded string of n random bytes (2n characters).
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomIntn returns a uniform random int in [0, max).
func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

// RandomPassword generates a random password of length n drawn from a
// mixed alphabet. Used when seeding accounts whose operator did not
// choose a password.
func RandomPassword(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(passwordChars))
		if err != nil {
			return "", fmt.Errorf("generating password char: %w", err)
		}
		sb.WriteRune(passwordChars[idx])
	}
	return sb.String(), nil
}
