package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLoginRateLimited AuditEvent = "login_rate_limited"
	AuditRegister         AuditEvent = "register"
	AuditLogout           AuditEvent = "logout"
	AuditSessionExpired   AuditEvent = "session_expired"
	AuditCSRFRejected     AuditEvent = "csrf_rejected"
	AuditDeposit          AuditEvent = "deposit"
	AuditWithdrawal       AuditEvent = "withdrawal"
	AuditTransfer         AuditEvent = "transfer"
	AuditUserUpdated      AuditEvent = "user_updated"
	AuditUserDeleted      AuditEvent = "user_deleted"
	AuditLevelChanged     AuditEvent = "level_changed"
	AuditLevelsReset      AuditEvent = "levels_reset"
	AuditDemoAccessed     AuditEvent = "demo_accessed"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logEvent is a convenience for events tied to a known user.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, userID int64, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a rejected or failed attempt.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
