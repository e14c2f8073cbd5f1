package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

type contextKey int

const sessionIDKey contextKey = iota

const sessionCookieName = "glassbank_session"

// SessionMiddleware guarantees every request runs with a live session: a
// valid cookie resolves to its stored session, anything else gets a
// fresh anonymous one. The session ID rides on the request context.
func (a *API) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			if _, ok := a.sessions.Get(cookie.Value); ok {
				sid = cookie.Value
			}
		}
		if sid == "" {
			sid = security.NewSessionID()
			a.sessions.Put(sid, security.Session{})
			writeSessionCookie(w, r, sid)
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests whose session is not logged in. The idle
// timeout is enforced here: a stale login is cleared and answered 401.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := sessionIDFromContext(r.Context())
		if !ok || !a.auth.IsLoggedIn(a.sessions, sid) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin sessions. Role checks are exact; there
// is no hierarchy between user and admin.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := sessionIDFromContext(r.Context())
		if !ok || !a.auth.IsLoggedIn(a.sessions, sid) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !a.auth.HasRole(a.sessions, sid, bank.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF verifies the anti-forgery token on state-changing
// requests. The token travels in the X-CSRF-Token header or, for form
// posts, the csrf_token field.
func (a *API) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.verifyCSRFFromRequest(r) {
			a.audit.logFailure(AuditCSRFRejected, r, "token missing or invalid")
			writeError(w, http.StatusForbidden, "csrf token missing or invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func csrfTokenFromRequest(r *http.Request) string {
	if token := r.Header.Get("X-CSRF-Token"); token != "" {
		return token
	}
	return r.PostFormValue("csrf_token")
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
