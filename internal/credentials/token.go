package credentials

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

const rawTokenBytes = 32

// TokenIssuer mints and verifies one-time report access tokens. Only the
// peppered HMAC digest of a token is ever persisted; the raw value is
// returned to the caller exactly once.
type TokenIssuer struct {
	pepper string
}

// NewTokenIssuer refuses to operate without a pepper: hashing with an empty
// key would silently strip the at-rest protection.
func NewTokenIssuer(pepper string) (*TokenIssuer, error) {
	if pepper == "" {
		return nil, fmt.Errorf("token pepper is required")
	}
	return &TokenIssuer{pepper: pepper}, nil
}

// Generate returns a fresh high-entropy url-safe token.
func (t *TokenIssuer) Generate() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the hex-encoded peppered digest stored at rest.
func (t *TokenIssuer) Hash(raw string) string {
	mac := hmac.New(sha256.New, []byte(t.pepper))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest for raw and compares it against the stored
// hex digest in constant time. Unequal lengths short-circuit to false;
// equal length is a precondition of the constant-time primitive.
func (t *TokenIssuer) Verify(raw, storedDigestHex string) bool {
	expected := t.Hash(raw)
	if len(expected) != len(storedDigestHex) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(storedDigestHex))
}

// LinkActive is the activity predicate for one-time links: unspent and
// unexpired.
func LinkActive(expiresAt time.Time, usedAt *time.Time, now time.Time) bool {
	return usedAt == nil && expiresAt.After(now)
}
