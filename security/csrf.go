package security

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/jmcleod/glassbank/internal/util"
)

const (
	// DefaultCSRFTokenBytes is the entropy of a token before hex encoding.
	DefaultCSRFTokenBytes = 16
	// DefaultCSRFTokenTTL is how long an issued token stays valid.
	DefaultCSRFTokenTTL = 1 * time.Hour
)

// CSRFManager issues and verifies per-session anti-forgery tokens. A
// session holds at most one active token; issuing a new one replaces the
// old. Tokens are deliberately NOT consumed on successful verification;
// they stay valid until expiry or replacement, mirroring the
// one-active-token model this application teaches.
type CSRFManager struct {
	tokenBytes int
	ttl        time.Duration
	now        func() time.Time
}

// NewCSRFManager creates a manager issuing hex tokens of tokenBytes
// random bytes, valid for ttl. Zero values fall back to the defaults.
func NewCSRFManager(tokenBytes int, ttl time.Duration) *CSRFManager {
	if tokenBytes <= 0 {
		tokenBytes = DefaultCSRFTokenBytes
	}
	if ttl <= 0 {
		ttl = DefaultCSRFTokenTTL
	}
	return &CSRFManager{tokenBytes: tokenBytes, ttl: ttl, now: time.Now}
}

// Issue generates a fresh token, stores it on the session (replacing any
// prior token in the same atomic update), and returns the value for
// embedding in a form or response.
func (m *CSRFManager) Issue(store Store, sessionID string) (string, error) {
	token, err := util.RandomHex(m.tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	entry := CSRFEntry{Value: token, ExpiresAt: m.now().Add(m.ttl)}
	if err := store.Update(sessionID, func(s *Session) {
		s.CSRF = entry
	}); err != nil {
		return "", fmt.Errorf("storing csrf token: %w", err)
	}
	return token, nil
}

// Verify reports whether supplied matches the session's active token.
// It fails closed: no stored token, an expired token, and a mismatch are
// all indistinguishable to the caller. Comparison is constant-time.
func (m *CSRFManager) Verify(store Store, sessionID, supplied string) bool {
	if supplied == "" {
		return false
	}
	s, ok := store.Get(sessionID)
	if !ok || s.CSRF.Value == "" {
		return false
	}
	if m.now().After(s.CSRF.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRF.Value), []byte(supplied)) == 1
}
