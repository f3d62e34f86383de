package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Signature header keys. The provider historically shipped t=/v1= before
// renaming to ts=/h1=; both spellings must keep verifying.
const (
	sigTimestampKey       = "ts"
	sigDigestKey          = "h1"
	sigLegacyTimestampKey = "t"
	sigLegacyDigestKey    = "v1"
)

// Signature schemes reported by VerifyScheme.
const (
	SchemeTimestamped = "timestamped"
	SchemeLegacy      = "legacy"
)

// Sign produces a signature header the verifier accepts. It exists for the
// inbound-testing path: simulated webhook deliveries sign their bodies the
// same way the provider does.
func Sign(body []byte, secret string, ts time.Time) string {
	unix := ts.Unix()
	digest := computeDigest(secret, fmt.Sprintf("%d:%s", unix, body))
	return fmt.Sprintf("%s=%d;%s=%s", sigTimestampKey, unix, sigDigestKey, digest)
}

// Verify reports whether header authenticates body under secret. It never
// panics and treats every malformed input as a verification failure.
func Verify(body []byte, header, secret string) bool {
	ok, _ := VerifyScheme(body, header, secret)
	return ok
}

// VerifyScheme verifies the signature and additionally names the scheme that
// matched, so callers can flag legacy-only senders.
func VerifyScheme(body []byte, header, secret string) (bool, string) {
	if header == "" || secret == "" {
		return false, ""
	}

	ts, digest := parseHeader(header)
	if digest == "" {
		return false, ""
	}

	if ts != "" {
		expected := computeDigest(secret, fmt.Sprintf("%s:%s", ts, body))
		if constantTimeEqualHex(expected, digest) {
			return true, SchemeTimestamped
		}
	}

	// Compatibility carve-out: older senders sign the raw body without
	// timestamp binding.
	expected := computeDigest(secret, string(body))
	if constantTimeEqualHex(expected, digest) {
		return true, SchemeLegacy
	}

	return false, ""
}

func parseHeader(header string) (ts, digest string) {
	for _, pair := range strings.Split(header, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case sigTimestampKey, sigLegacyTimestampKey:
			if ts == "" {
				ts = value
			}
		case sigDigestKey, sigLegacyDigestKey:
			if digest == "" {
				digest = value
			}
		}
	}
	return ts, digest
}

func computeDigest(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func constantTimeEqualHex(expected, candidate string) bool {
	if len(expected) != len(candidate) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(candidate))
}
