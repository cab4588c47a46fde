// internal/auth/apikey.go
package auth

import (
	"crypto/rand"
	"math/big"
)

const (
	apiKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	APIKeyLength   = 32
)

// GenerateAPIKey returns a random callback token of uppercase letters and digits.
func GenerateAPIKey() (string, error) {
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	b := make([]byte, APIKeyLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = apiKeyAlphabet[n.Int64()]
	}
	return string(b), nil
}
