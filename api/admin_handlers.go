package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

// Dashboard handles GET /admin/dashboard: headline counts plus the
// current security-level snapshot.
func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	userCount, err := a.store.CountUsers(r.Context(), "")
	if err != nil {
		mapError(w, err)
		return
	}
	accountCount, err := a.store.CountAccounts(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	txnCount, err := a.store.CountTransactions(r.Context(), "")
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardResponse{
		UserCount:        userCount,
		AccountCount:     accountCount,
		TransactionCount: txnCount,
		Levels:           levelStrings(a.levels.AllLevels(r.Context())),
	})
}

// ListUsers handles GET /admin/users with optional ?search= substring
// matching on username and email.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	limit, offset := parsePagination(r)
	users, err := a.store.Users(r.Context(), search, limit, offset)
	if err != nil {
		mapError(w, err)
		return
	}
	total, err := a.store.CountUsers(r.Context(), search)
	if err != nil {
		mapError(w, err)
		return
	}
	resp := ListUsersResponse{
		Users:      make([]UserSummary, 0, len(users)),
		Pagination: pageMeta(total, limit, offset, len(users)),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, userSummary(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAllTransactions handles GET /admin/transactions with optional
// ?type= filtering.
func (a *API) ListAllTransactions(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")
	limit, offset := parsePagination(r)
	txns, err := a.store.Transactions(r.Context(), typeFilter, limit, offset)
	if err != nil {
		mapError(w, err)
		return
	}
	total, err := a.store.CountTransactions(r.Context(), typeFilter)
	if err != nil {
		mapError(w, err)
		return
	}
	resp := ListTransactionsResponse{
		Transactions: make([]TransactionSummary, 0, len(txns)),
		Pagination:   pageMeta(total, limit, offset, len(txns)),
	}
	for _, t := range txns {
		resp.Transactions = append(resp.Transactions, a.transactionSummary(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateUserStatus handles PUT /admin/users/{userID}/status.
func (a *API) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := paramInt64(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	req, ok := decodeJSON[UpdateUserStatusRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Status != bank.StatusActive && req.Status != bank.StatusSuspended {
		writeError(w, http.StatusUnprocessableEntity, "status must be active or suspended")
		return
	}
	if err := a.store.UpdateUserStatus(r.Context(), userID, req.Status); err != nil {
		mapError(w, err)
		return
	}
	if p, ok := a.principalFromRequest(r); ok {
		a.audit.logEvent(AuditUserUpdated, r, p.UserID,
			slog.Int64("target_user_id", userID),
			slog.String("status", req.Status))
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateUserRole handles PUT /admin/users/{userID}/role. Admins cannot
// demote themselves; losing the last admin would lock the console.
func (a *API) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := paramInt64(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	req, ok := decodeJSON[UpdateUserRoleRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	role := bank.Role(req.Role)
	if !bank.ValidRole(role) {
		writeError(w, http.StatusUnprocessableEntity, "role must be user or admin")
		return
	}
	p, ok := a.principalFromRequest(r)
	if ok && p.UserID == userID && role != bank.RoleAdmin {
		writeError(w, http.StatusUnprocessableEntity, "cannot change your own role")
		return
	}
	if err := a.store.UpdateUserRole(r.Context(), userID, role); err != nil {
		mapError(w, err)
		return
	}
	if ok {
		a.audit.logEvent(AuditUserUpdated, r, p.UserID,
			slog.Int64("target_user_id", userID),
			slog.String("role", string(role)))
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser handles DELETE /admin/users/{userID}. Accounts and their
// ledgers go with the user.
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := paramInt64(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	p, ok := a.principalFromRequest(r)
	if ok && p.UserID == userID {
		writeError(w, http.StatusUnprocessableEntity, "cannot delete your own account")
		return
	}
	if err := a.store.DeleteUser(r.Context(), userID); err != nil {
		mapError(w, err)
		return
	}
	if ok {
		a.audit.logEvent(AuditUserDeleted, r, p.UserID,
			slog.Int64("target_user_id", userID))
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /admin/settings.
func (a *API) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SettingsResponse{
		Default: string(a.levels.Default()),
		Known:   a.levels.Known(),
		Levels:  levelStrings(a.levels.AllLevels(r.Context())),
	})
}

// UpdateSetting handles PUT /admin/settings/{vulnerabilityID}. Setting
// the same level twice is a no-op with the same stored outcome.
func (a *API) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	vulnID := chi.URLParam(r, "vulnerabilityID")
	if _, ok := a.demos.Get(vulnID); !ok {
		writeError(w, http.StatusNotFound, "unknown vulnerability")
		return
	}
	req, ok := decodeJSON[UpdateSettingRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	p, _ := a.principalFromRequest(r)
	if err := a.levels.SetLevel(r.Context(), vulnID, security.Level(req.Level), p.UserID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditLevelChanged, r, p.UserID,
		slog.String("vulnerability_id", vulnID),
		slog.String("level", req.Level))
	w.WriteHeader(http.StatusNoContent)
}

// ResetSettings handles POST /admin/settings/reset, putting every known
// vulnerability back to the default level.
func (a *API) ResetSettings(w http.ResponseWriter, r *http.Request) {
	p, _ := a.principalFromRequest(r)
	if err := a.levels.ResetAll(r.Context(), p.UserID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditLevelsReset, r, p.UserID,
		slog.String("level", string(a.levels.Default())))
	writeJSON(w, http.StatusOK, SettingsResponse{
		Default: string(a.levels.Default()),
		Known:   a.levels.Known(),
		Levels:  levelStrings(a.levels.AllLevels(r.Context())),
	})
}

func levelStrings(levels map[string]security.Level) map[string]string {
	out := make(map[string]string, len(levels))
	for id, level := range levels {
		out[id] = string(level)
	}
	return out
}
