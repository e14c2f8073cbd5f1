package security

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmcleod/glassbank/bank"
)

// DefaultIdleTimeout is how long an authenticated session may sit idle
// before it is treated as anonymous again.
const DefaultIdleTimeout = 30 * time.Minute

// UserStore is the external collaborator the authenticator reads users
// from. The authenticator collapses every lookup or verification failure
// into ErrInvalidCredentials; only the audit log records the real reason.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*bank.User, error)
}

// Principal identifies an authenticated user within a session.
type Principal struct {
	UserID   int64
	Username string
	Role     bank.Role
}

// Authenticator manages the Anonymous → Authenticated → Anonymous
// session lifecycle: login with session-fixation defense, logout, idle
// timeout, and role checks.
type Authenticator struct {
	users       UserStore
	idleTimeout time.Duration
	now         func() time.Time
}

// NewAuthenticator creates an authenticator over the given user store.
// idleTimeout of 0 falls back to DefaultIdleTimeout.
func NewAuthenticator(users UserStore, idleTimeout time.Duration) *Authenticator {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Authenticator{users: users, idleTimeout: idleTimeout, now: time.Now}
}

// HashPassword returns the bcrypt hash for a password at default cost.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether the password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies credentials and, on success, establishes the
// authenticated state on the session and regenerates the session ID so a
// pre-login identifier cannot be fixed by an attacker. It returns the
// principal and the NEW session ID. An unknown username, a wrong
// password, and a suspended account all fail with the same
// ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, store Store, sessionID, username, password string) (Principal, string, error) {
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil || user == nil {
		return Principal{}, "", ErrInvalidCredentials
	}
	if user.Status != bank.StatusActive {
		return Principal{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Principal{}, "", ErrInvalidCredentials
	}

	p := Principal{UserID: user.ID, Username: user.Username, Role: user.Role}
	if err := store.Update(sessionID, func(s *Session) {
		s.UserID = p.UserID
		s.Username = p.Username
		s.Role = p.Role
		s.AuthTime = a.now()
	}); err != nil {
		return Principal{}, "", fmt.Errorf("establishing session: %w", err)
	}
	newID, err := store.Regenerate(sessionID)
	if err != nil {
		return Principal{}, "", fmt.Errorf("regenerating session id: %w", err)
	}
	return p, newID, nil
}

// Logout clears the authentication attributes and regenerates the
// session identifier so the old one cannot be replayed. Flash messages
// survive; CSRF tokens and rate counters are dropped with the old ID.
// It returns the new anonymous session ID.
func (a *Authenticator) Logout(store Store, sessionID string) (string, error) {
	if err := store.Update(sessionID, func(s *Session) {
		s.ClearAuth()
	}); err != nil {
		return "", fmt.Errorf("clearing session: %w", err)
	}
	newID, err := store.Regenerate(sessionID)
	if err != nil {
		return "", fmt.Errorf("regenerating session id: %w", err)
	}
	return newID, nil
}

// Expired is the pure verdict half of the idle-timeout check: it reports
// whether the session's authentication has outlived the idle timeout
// without mutating anything.
func (a *Authenticator) Expired(s Session) bool {
	if !s.Authenticated() {
		return false
	}
	return a.now().Sub(s.AuthTime) > a.idleTimeout
}

// Expire performs the clear half: it removes the authentication
// attributes from the stored session.
func (a *Authenticator) Expire(store Store, sessionID string) {
	_ = store.Update(sessionID, func(s *Session) {
		s.ClearAuth()
	})
}

// IsLoggedIn reports whether the session holds a live authenticated
// principal. An expired session is cleared as a side effect and reported
// as logged out, so any check after the timeout observes the anonymous
// state.
func (a *Authenticator) IsLoggedIn(store Store, sessionID string) bool {
	s, ok := store.Get(sessionID)
	if !ok || !s.Authenticated() {
		return false
	}
	if a.Expired(s) {
		a.Expire(store, sessionID)
		return false
	}
	return true
}

// HasRole reports whether the session is logged in AND carries exactly
// the given role. There is no role hierarchy.
func (a *Authenticator) HasRole(store Store, sessionID string, role bank.Role) bool {
	if !a.IsLoggedIn(store, sessionID) {
		return false
	}
	s, ok := store.Get(sessionID)
	return ok && s.Role == role
}

// Principal returns the authenticated principal for the session, if the
// session is logged in (idle timeout enforced).
func (a *Authenticator) Principal(store Store, sessionID string) (Principal, bool) {
	if !a.IsLoggedIn(store, sessionID) {
		return Principal{}, false
	}
	s, ok := store.Get(sessionID)
	if !ok {
		return Principal{}, false
	}
	return Principal{UserID: s.UserID, Username: s.Username, Role: s.Role}, true
}
