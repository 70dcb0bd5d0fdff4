package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// generateVerifier produces a 96-byte random PKCE code verifier, base64url
// encoded without padding (spec §4.6 step 1).
func generateVerifier() (string, error) {
	b := make([]byte, 96)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeVerifier(v string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(v)
}

// challengeFromVerifier computes the S256 PKCE code challenge.
func challengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// generateState produces a random CSRF token shaped like a v4 UUID. No
// library in the example pack provides a UUID generator, so this is raw
// crypto/rand dressed in the canonical hyphenated form purely for
// readability in logs; nothing depends on RFC 4122 conformance.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state token: %w", err)
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
