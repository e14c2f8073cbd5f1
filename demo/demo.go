// Package demo contains the vulnerability demonstration endpoints. Each
// demo exposes one handler per security level; the variant is selected
// up front by (vulnerability ID, level), never by branching inside
// shared display code.
package demo

import (
	"net/http"
	"sort"

	"github.com/jmcleod/glassbank/security"
)

// Vulnerability identifiers.
const (
	SQLInjectionID = "sql_injection"
	XSSID          = "xss_reflected"
	CSRFID         = "csrf"
)

// Demo is one vulnerability demonstration.
type Demo interface {
	// ID is the stable vulnerability identifier used in routes and in
	// the security level settings table.
	ID() string
	// Title is the human-readable name shown in listings.
	Title() string
	// Handler returns the behavior variant for the given level. Every
	// demo must return a non-nil handler for all four levels.
	Handler(level security.Level) http.HandlerFunc
}

// Registry holds the known demos.
type Registry struct {
	demos map[string]Demo
}

// NewRegistry creates a registry over the given demos.
func NewRegistry(demos ...Demo) *Registry {
	r := &Registry{demos: make(map[string]Demo, len(demos))}
	for _, d := range demos {
		r.demos[d.ID()] = d
	}
	return r
}

// Get returns the demo with the given ID.
func (r *Registry) Get(id string) (Demo, bool) {
	d, ok := r.demos[id]
	return d, ok
}

// IDs returns the registered vulnerability identifiers, sorted. This is
// the authoritative "known vulnerabilities" set for the level store.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.demos))
	for id := range r.demos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the registered demos ordered by ID.
func (r *Registry) All() []Demo {
	out := make([]Demo, 0, len(r.demos))
	for _, id := range r.IDs() {
		out = append(out, r.demos[id])
	}
	return out
}
