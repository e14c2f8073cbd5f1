package demo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jmcleod/glassbank/security"
)

// SQLInjection is the user-lookup demonstration. It takes a user "id"
// query parameter and returns matching usernames and emails. The level
// controls how the parameter reaches the database.
type SQLInjection struct {
	db *sql.DB
}

// NewSQLInjection creates the SQL injection demo over a raw database
// handle. It bypasses the storage layer on purpose: the weaker levels
// need to build query strings by hand.
func NewSQLInjection(db *sql.DB) *SQLInjection {
	return &SQLInjection{db: db}
}

func (d *SQLInjection) ID() string    { return SQLInjectionID }
func (d *SQLInjection) Title() string { return "SQL Injection" }

// Handler returns the lookup variant for the level.
func (d *SQLInjection) Handler(level security.Level) http.HandlerFunc {
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

type sqliRow struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sqliResult struct {
	Query string    `json:"query"`
	Rows  []sqliRow `json:"rows"`
	Error string    `json:"error,omitempty"`
}

// low interpolates the raw parameter straight into the statement.
// `1 OR 1=1` dumps the table; a UNION reaches password hashes.
func (d *SQLInjection) low(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	query := fmt.Sprintf("SELECT id, username, email FROM users WHERE id = %s", id)
	d.run(w, r, query)
}

// medium strips special characters before interpolating. Quote-based
// payloads die but pure-digit-and-space ones like `1 OR 1 1` do not,
// and neither does `2 UNION SELECT ...` once the filter passes it.
func (d *SQLInjection) medium(w http.ResponseWriter, r *http.Request) {
	id := security.FilterSpecialChars(r.URL.Query().Get("id"))
	query := fmt.Sprintf("SELECT id, username, email FROM users WHERE id = %s", id)
	d.run(w, r, query)
}

// high binds the parameter. The database never sees attacker-controlled
// SQL, though the raw database error still leaks on failure.
func (d *SQLInjection) high(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	rows, err := d.db.QueryContext(r.Context(),
		"SELECT id, username, email FROM users WHERE id = ?", id)
	if err != nil {
		writeDemoJSON(w, http.StatusOK, sqliResult{
			Query: "SELECT id, username, email FROM users WHERE id = ?",
			Error: err.Error(),
		})
		return
	}
	defer rows.Close()
	writeDemoJSON(w, http.StatusOK, collectSQLIRows("SELECT id, username, email FROM users WHERE id = ?", rows))
}

// impossible validates the parameter as an integer before binding it and
// never surfaces database internals to the client.
func (d *SQLInjection) impossible(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeDemoJSON(w, http.StatusUnprocessableEntity, sqliResult{
			Query: "SELECT id, username, email FROM users WHERE id = ?",
			Error: "id must be a number",
		})
		return
	}
	rows, err := d.db.QueryContext(r.Context(),
		"SELECT id, username, email FROM users WHERE id = ?", id)
	if err != nil {
		writeDemoJSON(w, http.StatusInternalServerError, sqliResult{
			Query: "SELECT id, username, email FROM users WHERE id = ?",
			Error: "lookup failed",
		})
		return
	}
	defer rows.Close()
	writeDemoJSON(w, http.StatusOK, collectSQLIRows("SELECT id, username, email FROM users WHERE id = ?", rows))
}

// run executes an already-built statement and reports the result along
// with the exact SQL that ran, so the effect of each level is visible.
func (d *SQLInjection) run(w http.ResponseWriter, r *http.Request, query string) {
	rows, err := d.db.QueryContext(r.Context(), query)
	if err != nil {
		writeDemoJSON(w, http.StatusOK, sqliResult{Query: query, Error: err.Error()})
		return
	}
	defer rows.Close()
	writeDemoJSON(w, http.StatusOK, collectSQLIRows(query, rows))
}

func collectSQLIRows(query string, rows *sql.Rows) sqliResult {
	res := sqliResult{Query: query, Rows: []sqliRow{}}
	for rows.Next() {
		var row sqliRow
		if err := rows.Scan(&row.ID, &row.Username, &row.Email); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		res.Error = err.Error()
	}
	return res
}

func writeDemoJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
