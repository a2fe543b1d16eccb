// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const referenceSet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateReference returns a human-readable identifier such as DSP-7KQ2M9XW4T.
// Ambiguous characters (0, O, 1, I) are left out.
func GenerateReference(prefix string, length int) (string, error) {
	body, err := randomFrom(referenceSet, length)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(prefix) + "-" + body, nil
}

func randomFrom(charset string, length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}
