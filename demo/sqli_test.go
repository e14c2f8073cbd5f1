package demo

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/security"
	"github.com/jmcleod/glassbank/storage/sqlite"
)

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, name := range []string{"alice", "bob", "carol"} {
		require.NoError(t, store.CreateUser(ctx, &bank.User{
			Username: name, Email: name + "@test", PasswordHash: "secret-hash-" + name,
			Role: bank.RoleUser, Status: bank.StatusActive,
		}))
	}
	return store
}

func runSQLI(t *testing.T, d *SQLInjection, level security.Level, id string) (int, sqliResult) {
	t.Helper()
	req := httptest.NewRequest("GET", "/demos/sql_injection?id="+url.QueryEscape(id), nil)
	rec := httptest.NewRecorder()
	d.Handler(level)(rec, req)

	var res sqliResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return rec.Code, res
}

func TestSQLInjectionLowIsInjectable(t *testing.T) {
	store := seededStore(t)
	d := NewSQLInjection(store.DB())

	_, res := runSQLI(t, d, security.LevelLow, "1")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0].Username)

	// The classic tautology dumps every row.
	_, res = runSQLI(t, d, security.LevelLow, "1 OR 1=1")
	assert.Len(t, res.Rows, 3)

	// A UNION reaches columns the endpoint never meant to expose.
	_, res = runSQLI(t, d, security.LevelLow,
		"0 UNION SELECT id, username, password_hash FROM users")
	require.Len(t, res.Rows, 3)
	assert.Contains(t, res.Rows[0].Email, "secret-hash-")
}

func TestSQLInjectionMediumFilterIsNotADefense(t *testing.T) {
	store := seededStore(t)
	d := NewSQLInjection(store.DB())

	_, res := runSQLI(t, d, security.LevelMedium, "2")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "bob", res.Rows[0].Username)

	// The filter strips quotes and equals signs, but the survivor
	// `1 OR 11` is a truthy expression: the whole table still leaks.
	_, res = runSQLI(t, d, security.LevelMedium, "1' OR '1'='1")
	assert.Len(t, res.Rows, 3)

	// The executed statement is echoed with the filtered input in place.
	assert.Contains(t, res.Query, "WHERE id = 1 OR 11")
}

func TestSQLInjectionHighBindsParameter(t *testing.T) {
	store := seededStore(t)
	d := NewSQLInjection(store.DB())

	_, res := runSQLI(t, d, security.LevelHigh, "2")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "bob", res.Rows[0].Username)

	// The payload is bound as a value, never parsed as SQL.
	_, res = runSQLI(t, d, security.LevelHigh, "1 OR 1=1")
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Error)
}

func TestSQLInjectionImpossibleValidatesInput(t *testing.T) {
	store := seededStore(t)
	d := NewSQLInjection(store.DB())

	code, res := runSQLI(t, d, security.LevelImpossible, "3")
	assert.Equal(t, 200, code)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "carol", res.Rows[0].Username)

	code, res = runSQLI(t, d, security.LevelImpossible, "1 OR 1=1")
	assert.Equal(t, 422, code)
	assert.Empty(t, res.Rows)
	assert.Equal(t, "id must be a number", res.Error)
}
