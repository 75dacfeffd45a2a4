package oidc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// ChallengeMethod is the only code challenge method sent
const ChallengeMethod = "S256"

// PKCE is a proof key for code exchange
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// NewPKCE generates a verifier of 32 random bytes and its S256 challenge
func NewPKCE() (*PKCE, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return &PKCE{
		Verifier:  verifier,
		Challenge: challenge(verifier),
		Method:    ChallengeMethod,
	}, nil
}

func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewState returns a random state or nonce value
func NewState() string {
	return uuid.NewString()
}
