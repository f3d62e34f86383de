package credentials

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultSessionTTL applies when an issuance call does not override it.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is the verified content of a guest session credential.
type Session struct {
	Email     string
	ExpiresAt time.Time
}

type sessionPayload struct {
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// SessionIssuer signs and verifies self-contained guest session cookies. The
// value is base64url(JSON payload) + "." + hex HMAC-SHA256 of the encoded
// payload; validation needs no database lookup. The signing secret is
// deliberately distinct from the token pepper so a compromise of one does
// not compromise the other.
type SessionIssuer struct {
	secret     string
	defaultTTL time.Duration
}

func NewSessionIssuer(secret string, defaultTTL time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultSessionTTL
	}
	return &SessionIssuer{secret: secret, defaultTTL: defaultTTL}, nil
}

// Issue builds a signed session value for email using the default TTL.
func (s *SessionIssuer) Issue(email string, now time.Time) (string, time.Time) {
	return s.IssueWithTTL(email, now, s.defaultTTL)
}

// IssueWithTTL builds a signed session value expiring after ttl.
func (s *SessionIssuer) IssueWithTTL(email string, now time.Time, ttl time.Duration) (string, time.Time) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	expiresAt := now.Add(ttl)
	payload := sessionPayload{
		Email: strings.ToLower(strings.TrimSpace(email)),
		Exp:   expiresAt.UnixMilli(),
	}
	encoded, _ := json.Marshal(payload)
	segment := base64.RawURLEncoding.EncodeToString(encoded)
	return segment + "." + s.sign(segment), expiresAt
}

// Verify validates a session value and returns its content, or nil for any
// malformed, tampered or expired input. It never panics or returns an error;
// callers cannot leak why a credential was rejected.
func (s *SessionIssuer) Verify(value string, now time.Time) *Session {
	segment, signature, found := strings.Cut(value, ".")
	if !found || segment == "" || signature == "" {
		return nil
	}

	expected := s.sign(segment)
	if len(expected) != len(signature) || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil
	}
	var payload sessionPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil
	}
	if payload.Email == "" || payload.Exp <= 0 {
		return nil
	}

	expiresAt := time.UnixMilli(payload.Exp)
	if !expiresAt.After(now) {
		return nil
	}

	return &Session{Email: payload.Email, ExpiresAt: expiresAt}
}

func (s *SessionIssuer) sign(segment string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(segment))
	return hex.EncodeToString(mac.Sum(nil))
}
