package demo

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmcleod/glassbank/security"
)

func runXSS(t *testing.T, level security.Level, name string) *httptest.ResponseRecorder {
	t.Helper()
	d := NewXSS()
	req := httptest.NewRequest("GET", "/demos/xss_reflected?name="+url.QueryEscape(name), nil)
	rec := httptest.NewRecorder()
	d.Handler(level)(rec, req)
	return rec
}

const payload = `<script>alert(1)</script>`

func TestXSSLowReflectsRaw(t *testing.T) {
	rec := runXSS(t, security.LevelLow, payload)
	assert.Contains(t, rec.Body.String(), payload)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestXSSMediumStripsOnlyLiteralTag(t *testing.T) {
	rec := runXSS(t, security.LevelMedium, payload)
	assert.NotContains(t, rec.Body.String(), "<script>")

	// Changing the case walks straight past the literal filter.
	rec = runXSS(t, security.LevelMedium, `<SCRIPT>alert(1)</SCRIPT>`)
	assert.Contains(t, rec.Body.String(), "<SCRIPT>")
}

func TestXSSHighStripsScriptTagsButNotHandlers(t *testing.T) {
	rec := runXSS(t, security.LevelHigh, `<ScRiPt src=x>alert(1)</script>`)
	body := rec.Body.String()
	assert.NotContains(t, body, "<ScRiPt")
	assert.NotContains(t, body, "<script")

	// Event handlers still fire; script elements were never the only way.
	rec = runXSS(t, security.LevelHigh, `<img src=x onerror=alert(1)>`)
	assert.Contains(t, rec.Body.String(), "onerror=alert(1)")
}

func TestXSSImpossibleEncodesEverything(t *testing.T) {
	rec := runXSS(t, security.LevelImpossible, payload)
	body := rec.Body.String()
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
}
