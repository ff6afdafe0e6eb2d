package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random secret of n bytes, hex encoded
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Secrets is a fresh set of signing secrets for a deployment
type Secrets struct {
	JWTAccess      string
	JWTRefresh     string
	PaymentWebhook string
}

// GenerateSecrets generates distinct 256-bit JWT and payment webhook secrets
func GenerateSecrets() (*Secrets, error) {
	var s Secrets
	for _, dst := range []*string{&s.JWTAccess, &s.JWTRefresh, &s.PaymentWebhook} {
		secret, err := GenerateSecret(32)
		if err != nil {
			return nil, err
		}
		*dst = secret
	}
	return &s, nil
}
