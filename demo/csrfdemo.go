package demo

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

// PasswordStore is the slice of user storage the CSRF demo needs.
type PasswordStore interface {
	UserByID(ctx context.Context, id int64) (*bank.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// CSRF is the password-change demonstration. The handler mutates the
// logged-in user's password; the level controls which proof the request
// must carry that it really came from the user.
type CSRF struct {
	users PasswordStore
	// identity resolves the logged-in principal for the request. The
	// surrounding router owns sessions, so it is injected rather than
	// imported.
	identity func(*http.Request) (security.Principal, bool)
	// verifyToken checks the request's CSRF token against the session.
	verifyToken func(*http.Request) bool
}

// NewCSRF creates the CSRF demo.
func NewCSRF(users PasswordStore, identity func(*http.Request) (security.Principal, bool), verifyToken func(*http.Request) bool) *CSRF {
	return &CSRF{users: users, identity: identity, verifyToken: verifyToken}
}

func (d *CSRF) ID() string    { return CSRFID }
func (d *CSRF) Title() string { return "Cross-Site Request Forgery" }

// Handler returns the password-change variant for the level.
func (d *CSRF) Handler(level security.Level) http.HandlerFunc {
	switch level {
	case security.LevelLow:
		return d.low
	case security.LevelMedium:
		return d.medium
	case security.LevelHigh:
		return d.high
	default:
		return d.impossible
	}
}

type csrfResult struct {
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// low changes the password for any request that names a new one, GET
// included. A hostile page can trigger it with a plain image tag.
func (d *CSRF) low(w http.ResponseWriter, r *http.Request) {
	d.change(w, r)
}

// medium demands that the Referer mention this host. Forged requests
// from other origins fail, but a referer is attacker-influenced on
// pages the attacker can name, and browsers may omit it entirely.
func (d *CSRF) medium(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Referer"), r.Host) {
		writeDemoJSON(w, http.StatusForbidden, csrfResult{Error: "request did not originate here"})
		return
	}
	d.change(w, r)
}

// high requires the session's CSRF token, which a foreign origin cannot
// read.
func (d *CSRF) high(w http.ResponseWriter, r *http.Request) {
	if !d.verifyToken(r) {
		writeDemoJSON(w, http.StatusForbidden, csrfResult{Error: "invalid or missing token"})
		return
	}
	d.change(w, r)
}

// impossible additionally re-authenticates: the request must prove
// knowledge of the current password, which no forged request has.
func (d *CSRF) impossible(w http.ResponseWriter, r *http.Request) {
	if !d.verifyToken(r) {
		writeDemoJSON(w, http.StatusForbidden, csrfResult{Error: "invalid or missing token"})
		return
	}
	p, ok := d.identity(r)
	if !ok {
		writeDemoJSON(w, http.StatusUnauthorized, csrfResult{Error: "not logged in"})
		return
	}
	user, err := d.users.UserByID(r.Context(), p.UserID)
	if err != nil {
		writeDemoJSON(w, http.StatusInternalServerError, csrfResult{Error: "lookup failed"})
		return
	}
	if !security.CheckPassword(user.PasswordHash, r.FormValue("current_password")) {
		writeDemoJSON(w, http.StatusForbidden, csrfResult{Error: "current password is wrong"})
		return
	}
	d.change(w, r)
}

// change applies the password update shared by every level.
func (d *CSRF) change(w http.ResponseWriter, r *http.Request) {
	p, ok := d.identity(r)
	if !ok {
		writeDemoJSON(w, http.StatusUnauthorized, csrfResult{Error: "not logged in"})
		return
	}
	newPassword := r.FormValue("new_password")
	if newPassword == "" || newPassword != r.FormValue("confirm_password") {
		writeDemoJSON(w, http.StatusUnprocessableEntity, csrfResult{Error: "passwords do not match"})
		return
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		writeDemoJSON(w, http.StatusInternalServerError, csrfResult{Error: "hashing failed"})
		return
	}
	if err := d.users.UpdatePassword(r.Context(), p.UserID, hash); err != nil {
		writeDemoJSON(w, http.StatusInternalServerError, csrfResult{Error: "update failed"})
		return
	}
	writeDemoJSON(w, http.StatusOK, csrfResult{Changed: true})
}
