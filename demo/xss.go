package demo

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jmcleod/glassbank/security"
)

var scriptTag = regexp.MustCompile(`(?i)<script[^>]*>`)

// XSS is the reflected cross-site scripting demonstration: a greeting
// page that echoes the "name" query parameter back into its HTML.
type XSS struct{}

// NewXSS creates the reflected XSS demo.
func NewXSS() *XSS { return &XSS{} }

func (d *XSS) ID() string    { return XSSID }
func (d *XSS) Title() string { return "Reflected XSS" }

// Handler returns the greeting variant for the level.
func (d *XSS) Handler(level security.Level) http.HandlerFunc {
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

// low reflects the parameter untouched.
func (d *XSS) low(w http.ResponseWriter, r *http.Request) {
	writeGreeting(w, r.URL.Query().Get("name"))
}

// medium removes the literal "<script>" opener. Changing the case or
// nesting the tag walks straight past it.
func (d *XSS) medium(w http.ResponseWriter, r *http.Request) {
	name := strings.ReplaceAll(r.URL.Query().Get("name"), "<script>", "")
	writeGreeting(w, name)
}

// high strips script tags case-insensitively. Script elements are gone
// but event-handler attributes like onerror still fire.
func (d *XSS) high(w http.ResponseWriter, r *http.Request) {
	name := scriptTag.ReplaceAllString(r.URL.Query().Get("name"), "")
	writeGreeting(w, name)
}

// impossible encodes the output and pins a content security policy, so
// the browser treats the parameter as text no matter what it contains.
func (d *XSS) impossible(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
	writeGreeting(w, security.SanitizeHTML(r.URL.Query().Get("name")))
}

func writeGreeting(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><body><p>Hello %s</p></body></html>\n", name)
}
