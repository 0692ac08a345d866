// Package pkce implements RFC 7636 (Proof Key for Code Exchange)
// verifier and challenge generation. Only the S256 method is supported;
// "plain" defeats the purpose of PKCE.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Method is the only code_challenge_method we ever send.
const Method = "S256"

// NewVerifier returns a fresh code verifier: 32 bytes of CSPRNG output,
// base64url-encoded without padding (43 chars, within the RFC's 43-128
// character window).
func NewVerifier() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("pkce: reading entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Challenge derives the S256 code challenge for a verifier:
// base64url(SHA256(verifier)), no padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
