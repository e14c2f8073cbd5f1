package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

const maxBodySize = 1 << 20 // 1 MiB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, security.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, security.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, security.ErrCSRFMismatch):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, security.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, security.ErrInvalidLevel):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, bank.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, bank.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bank.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, bank.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, bank.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, bank.ErrSameAccount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads and decodes a JSON body of at most limit bytes,
// answering 400 itself when the body is malformed.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	// Reject trailing garbage after the JSON document.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
