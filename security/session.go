// Package security implements the cross-request state machinery of the
// application: server-held sessions, session-based authentication with
// idle timeout, CSRF token issuance and verification, fixed-window rate
// limiting, and the persisted per-vulnerability security level settings.
//
// Every operation takes the session store and session ID explicitly;
// there is no ambient global session.
package security

import (
	"sync"
	"time"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/internal/uuid"
)

// CSRFEntry is the single active anti-forgery token for a session.
type CSRFEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Window is one fixed-window rate-limit counter.
type Window struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Flash is a one-shot message carried across a redirect and consumed on
// first read.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the server-held state keyed by the opaque token delivered
// to the client in a cookie. The zero value is a valid anonymous session.
type Session struct {
	UserID   int64              `json:"user_id,omitempty"`
	Username string             `json:"username,omitempty"`
	Role     bank.Role          `json:"role,omitempty"`
	AuthTime time.Time          `json:"auth_time,omitzero"`
	CSRF     CSRFEntry          `json:"csrf,omitzero"`
	Counters map[string]Window  `json:"counters,omitempty"`
	Flash    *Flash             `json:"flash,omitempty"`
	LastSeen time.Time          `json:"last_seen,omitzero"`
}

// Authenticated reports whether the session carries an authenticated
// principal. It does not consider the idle timeout; see Authenticator.
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// ClearAuth removes the authentication attributes, returning the session
// to the anonymous state. Flash and CSRF state are left in place.
func (s *Session) ClearAuth() {
	s.UserID = 0
	s.Username = ""
	s.Role = bank.RoleGuest
	s.AuthTime = time.Time{}
}

// Store abstracts session persistence. Update and Regenerate are atomic
// with respect to concurrent requests for the same session; the rate
// limiter and the CSRF manager depend on that for their read-modify-write
// cycles.
type Store interface {
	// Get retrieves a session by ID. Returns false if none exists.
	Get(id string) (Session, bool)
	// Put creates or replaces the session under id.
	Put(id string, s Session)
	// Update applies fn to the session under id (creating an anonymous
	// session if none exists) as a single atomic read-modify-write.
	Update(id string, fn func(*Session)) error
	// Regenerate moves the session to a fresh ID and returns it. The
	// authenticated principal and any flash message carry over; CSRF
	// tokens and rate-limit counters are dropped, not merged.
	Regenerate(id string) (string, error)
	// Delete removes the session entirely.
	Delete(id string)
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.New()
}

// regenerated returns the session state that survives an ID change.
func regenerated(old Session) Session {
	return Session{
		UserID:   old.UserID,
		Username: old.Username,
		Role:     old.Role,
		AuthTime: old.AuthTime,
		Flash:    old.Flash,
		LastSeen: time.Now(),
	}
}

// MemoryStore is a mutex-guarded in-memory Store. Sessions are lost on
// restart; use BoltStore when they should survive.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Session)}
}

func (m *MemoryStore) Get(id string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.data[id]
	m.mu.RUnlock()
	return s, ok
}

func (m *MemoryStore) Put(id string, s Session) {
	s.LastSeen = time.Now()
	m.mu.Lock()
	m.data[id] = s
	m.mu.Unlock()
}

func (m *MemoryStore) Update(id string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.data[id]
	fn(&s)
	s.LastSeen = time.Now()
	m.data[id] = s
	return nil
}

func (m *MemoryStore) Regenerate(id string) (string, error) {
	newID := NewSessionID()
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.data[id]
	delete(m.data, id)
	m.data[newID] = regenerated(old)
	return newID, nil
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
}

// Sweep removes sessions idle longer than maxAge and returns how many
// were removed.
func (m *MemoryStore) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.data {
		if s.LastSeen.Before(cutoff) {
			delete(m.data, id)
			n++
		}
	}
	return n
}
