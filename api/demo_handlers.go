package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListDemos handles GET /demos, pairing each demo with its active level.
func (a *API) ListDemos(w http.ResponseWriter, r *http.Request) {
	resp := ListDemosResponse{Demos: make([]DemoSummary, 0, 3)}
	for _, d := range a.demos.All() {
		resp.Demos = append(resp.Demos, DemoSummary{
			ID:    d.ID(),
			Title: d.Title(),
			Level: string(a.levels.GetLevel(r.Context(), d.ID())),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunDemo handles /demos/{vulnerabilityID} for any method. The stored
// level picks the variant before the request touches demo code, so two
// requests at different levels never share a code path.
func (a *API) RunDemo(w http.ResponseWriter, r *http.Request) {
	vulnID := chi.URLParam(r, "vulnerabilityID")
	d, ok := a.demos.Get(vulnID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown vulnerability")
		return
	}
	level := a.levels.GetLevel(r.Context(), vulnID)
	if p, ok := a.principalFromRequest(r); ok {
		a.audit.logEvent(AuditDemoAccessed, r, p.UserID,
			slog.String("vulnerability_id", vulnID),
			slog.String("level", string(level)))
	}
	d.Handler(level)(w, r)
}
