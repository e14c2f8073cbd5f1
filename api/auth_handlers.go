package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmcleod/glassbank/security"
)

const (
	defaultLoginMax    = 5
	defaultLoginWindow = time.Minute

	// minPasswordLen is the floor for new passwords. Existing accounts
	// are never re-checked; only registration and password changes
	// enforce it.
	minPasswordLen = 8
	minUsernameLen = 3
)

// Register handles POST /auth/register. A new user gets the "user" role
// and one freshly numbered account.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < minUsernameLen {
		writeError(w, http.StatusBadRequest, "username must be at least 3 characters")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process password")
		return
	}
	user, account, err := a.bank.Register(r.Context(), req.Username, strings.TrimSpace(req.Email), hash)
	if err != nil {
		mapError(w, err)
		return
	}

	if sid, ok := sessionIDFromContext(r.Context()); ok {
		a.setFlash(sid, "success", "account created, you can log in now")
	}
	a.audit.logEvent(AuditRegister, r, user.ID, slog.String("username", user.Username))
	writeJSON(w, http.StatusCreated, RegisterResponse{
		UserID:        user.ID,
		Username:      user.Username,
		AccountNumber: account.Number,
	})
}

// Login handles POST /auth/login. Attempts are rate limited per session
// before credentials are checked; on success the session ID rotates and
// the new cookie is set.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	limited, err := a.limiter.Limited(a.sessions, sid, "login", a.loginMax, a.loginWindow)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rate limit check failed")
		return
	}
	if limited {
		a.audit.logFailure(AuditLoginRateLimited, r, "too many attempts",
			slog.String("username", req.Username))
		if ra := a.limiter.RetryAfter(a.sessions, sid, "login", a.loginWindow); ra > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int((ra+time.Second-1)/time.Second)))
		}
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	p, newID, err := a.auth.Login(r.Context(), a.sessions, sid, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, security.ErrInvalidCredentials) {
			a.audit.logFailure(AuditLoginFailure, r, "invalid credentials",
				slog.String("username", req.Username))
		}
		mapError(w, err)
		return
	}

	writeSessionCookie(w, r, newID)
	a.setFlash(newID, "success", "welcome back, "+p.Username)
	a.audit.logEvent(AuditLoginSuccess, r, p.UserID, slog.String("username", p.Username))
	writeJSON(w, http.StatusOK, LoginResponse{
		UserID:   p.UserID,
		Username: p.Username,
		Role:     string(p.Role),
	})
}

// Logout handles POST /auth/logout. Logging out an anonymous session is
// a no-op that still rotates the session ID.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	if p, ok := a.auth.Principal(a.sessions, sid); ok {
		a.audit.logEvent(AuditLogout, r, p.UserID, slog.String("username", p.Username))
	}
	newID, err := a.auth.Logout(a.sessions, sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeSessionCookie(w, r, newID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		UserID:   p.UserID,
		Username: p.Username,
		Role:     string(p.Role),
	})
}

// CSRFToken handles GET /auth/csrf. Each call issues a fresh token that
// replaces the session's previous one.
func (a *API) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}
	token, err := a.csrf.Issue(a.sessions, sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, CSRFTokenResponse{Token: token})
}

// Flash handles GET /flash. The message is consumed by the read.
func (a *API) Flash(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, FlashResponse{})
		return
	}
	var fl *security.Flash
	_ = a.sessions.Update(sid, func(s *security.Session) {
		fl = s.Flash
		s.Flash = nil
	})
	if fl == nil {
		writeJSON(w, http.StatusOK, FlashResponse{})
		return
	}
	writeJSON(w, http.StatusOK, FlashResponse{Kind: fl.Kind, Message: fl.Message})
}

func (a *API) setFlash(sid, kind, message string) {
	_ = a.sessions.Update(sid, func(s *security.Session) {
		s.Flash = &security.Flash{Kind: kind, Message: message}
	})
}
