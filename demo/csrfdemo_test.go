package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
)

type fakePasswordStore struct {
	user    *bank.User
	updated string
}

func (f *fakePasswordStore) UserByID(ctx context.Context, id int64) (*bank.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, bank.ErrNotFound
	}
	return f.user, nil
}

func (f *fakePasswordStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	f.updated = hash
	return nil
}

type csrfFixture struct {
	demo   *CSRF
	store  *fakePasswordStore
	token  string
	authed bool
}

func newCSRFFixture(t *testing.T) *csrfFixture {
	t.Helper()
	hash, err := security.HashPassword("old password 123")
	require.NoError(t, err)

	f := &csrfFixture{
		store:  &fakePasswordStore{user: &bank.User{ID: 1, Username: "alice", PasswordHash: hash}},
		token:  "good-token",
		authed: true,
	}
	identity := func(r *http.Request) (security.Principal, bool) {
		if !f.authed {
			return security.Principal{}, false
		}
		return security.Principal{UserID: 1, Username: "alice", Role: bank.RoleUser}, true
	}
	verify := func(r *http.Request) bool {
		return r.FormValue("csrf_token") == f.token
	}
	f.demo = NewCSRF(f.store, identity, verify)
	return f
}

func postChange(t *testing.T, h http.HandlerFunc, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/demos/csrf", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCSRFLowAcceptsForgedGET(t *testing.T) {
	f := newCSRFFixture(t)

	// The kind of URL a hostile page embeds in an image tag.
	req := httptest.NewRequest("GET",
		"/demos/csrf?new_password=pwned&confirm_password=pwned", nil)
	rec := httptest.NewRecorder()
	f.demo.Handler(security.LevelLow)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, f.store.updated, "password changed with no proof at all")
}

func TestCSRFLowRequiresLogin(t *testing.T) {
	f := newCSRFFixture(t)
	f.authed = false

	rec := postChange(t, f.demo.Handler(security.LevelLow), url.Values{
		"new_password": {"x"}, "confirm_password": {"x"},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.store.updated)
}

func TestCSRFMediumChecksReferer(t *testing.T) {
	f := newCSRFFixture(t)
	form := url.Values{"new_password": {"x"}, "confirm_password": {"x"}}

	rec := postChange(t, f.demo.Handler(security.LevelMedium), form,
		map[string]string{"Referer": "https://evil.example/attack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.store.updated)

	rec = postChange(t, f.demo.Handler(security.LevelMedium), form,
		map[string]string{"Referer": "http://example.com/settings"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, f.store.updated)
}

func TestCSRFHighRequiresToken(t *testing.T) {
	f := newCSRFFixture(t)
	form := url.Values{"new_password": {"x"}, "confirm_password": {"x"}}

	rec := postChange(t, f.demo.Handler(security.LevelHigh), form, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	form.Set("csrf_token", "good-token")
	rec = postChange(t, f.demo.Handler(security.LevelHigh), form, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, f.store.updated)
}

func TestCSRFImpossibleRequiresCurrentPassword(t *testing.T) {
	f := newCSRFFixture(t)
	form := url.Values{
		"csrf_token":       {"good-token"},
		"new_password":     {"brand new pw"},
		"confirm_password": {"brand new pw"},
	}

	rec := postChange(t, f.demo.Handler(security.LevelImpossible), form, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "missing current password")
	assert.Empty(t, f.store.updated)

	form.Set("current_password", "wrong")
	rec = postChange(t, f.demo.Handler(security.LevelImpossible), form, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	form.Set("current_password", "old password 123")
	rec = postChange(t, f.demo.Handler(security.LevelImpossible), form, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, f.store.updated)
}

func TestCSRFChangeRejectsMismatch(t *testing.T) {
	f := newCSRFFixture(t)
	rec := postChange(t, f.demo.Handler(security.LevelLow), url.Values{
		"new_password": {"one"}, "confirm_password": {"two"},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, f.store.updated)
}

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry(NewXSS(), NewSQLInjection(nil), NewCSRF(nil, nil, nil))

	assert.Equal(t, []string{CSRFID, SQLInjectionID, XSSID}, r.IDs())

	d, ok := r.Get(XSSID)
	require.True(t, ok)
	assert.Equal(t, XSSID, d.ID())

	_, ok = r.Get("nope")
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, CSRFID, all[0].ID())
}
