package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettings struct {
	rows    map[string]LevelSetting
	failIDs map[string]bool
}

func newMemSettings() *memSettings {
	return &memSettings{rows: make(map[string]LevelSetting), failIDs: make(map[string]bool)}
}

func (m *memSettings) Setting(ctx context.Context, id string) (LevelSetting, bool, error) {
	s, ok := m.rows[id]
	return s, ok, nil
}

func (m *memSettings) UpsertSetting(ctx context.Context, s LevelSetting) error {
	if m.failIDs[s.VulnerabilityID] {
		return errors.New("disk full")
	}
	m.rows[s.VulnerabilityID] = s
	return nil
}

func (m *memSettings) Settings(ctx context.Context) ([]LevelSetting, error) {
	out := make([]LevelSetting, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	return out, nil
}

var knownVulns = []string{"sql_injection", "xss_reflected", "csrf"}

func TestParseLevel(t *testing.T) {
	for _, l := range Levels() {
		parsed, err := ParseLevel(string(l))
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseLevel("extreme")
	assert.ErrorIs(t, err, ErrInvalidLevel)
	_, err = ParseLevel("")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestGetLevelDefaultFallback(t *testing.T) {
	ls := NewLevelStore(newMemSettings(), knownVulns, LevelImpossible)
	ctx := context.Background()

	assert.Equal(t, LevelImpossible, ls.GetLevel(ctx, "sql_injection"), "unset id")
	assert.Equal(t, LevelImpossible, ls.GetLevel(ctx, "no_such_vuln"), "unknown id")
}

func TestSetLevelRoundTrip(t *testing.T) {
	store := newMemSettings()
	ls := NewLevelStore(store, knownVulns, LevelImpossible)
	ctx := context.Background()

	require.NoError(t, ls.SetLevel(ctx, "xss_reflected", LevelLow, 42))
	assert.Equal(t, LevelLow, ls.GetLevel(ctx, "xss_reflected"))
	assert.Equal(t, int64(42), store.rows["xss_reflected"].UpdatedBy)

	// Same level twice: same stored state.
	before := store.rows["xss_reflected"]
	require.NoError(t, ls.SetLevel(ctx, "xss_reflected", LevelLow, 42))
	after := store.rows["xss_reflected"]
	assert.Equal(t, before.Level, after.Level)
	assert.Equal(t, before.VulnerabilityID, after.VulnerabilityID)
}

func TestSetLevelRejectsUnknownLevel(t *testing.T) {
	ls := NewLevelStore(newMemSettings(), knownVulns, LevelImpossible)
	err := ls.SetLevel(context.Background(), "csrf", Level("extreme"), 1)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestSetLevelWrapsStoreFailure(t *testing.T) {
	store := newMemSettings()
	store.failIDs["csrf"] = true
	ls := NewLevelStore(store, knownVulns, LevelImpossible)
	err := ls.SetLevel(context.Background(), "csrf", LevelHigh, 1)
	assert.ErrorIs(t, err, ErrStoreWrite)
}

func TestResetAll(t *testing.T) {
	store := newMemSettings()
	ls := NewLevelStore(store, knownVulns, LevelImpossible)
	ctx := context.Background()

	require.NoError(t, ls.SetLevel(ctx, "sql_injection", LevelLow, 1))
	require.NoError(t, ls.SetLevel(ctx, "csrf", LevelMedium, 1))

	require.NoError(t, ls.ResetAll(ctx, 7))

	all := ls.AllLevels(ctx)
	require.Len(t, all, len(knownVulns))
	for id, level := range all {
		assert.Equal(t, LevelImpossible, level, "vulnerability %s", id)
	}
	for _, id := range knownVulns {
		assert.Equal(t, int64(7), store.rows[id].UpdatedBy)
	}
}

func TestResetAllAggregatesFailures(t *testing.T) {
	store := newMemSettings()
	store.failIDs["xss_reflected"] = true
	ls := NewLevelStore(store, knownVulns, LevelImpossible)

	err := ls.ResetAll(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreWrite)

	// The writes that could succeed did.
	assert.Equal(t, LevelImpossible, store.rows["sql_injection"].Level)
	assert.Equal(t, LevelImpossible, store.rows["csrf"].Level)
}

func TestAllLevelsIgnoresGarbageRows(t *testing.T) {
	store := newMemSettings()
	store.rows["sql_injection"] = LevelSetting{VulnerabilityID: "sql_injection", Level: LevelMedium, UpdatedAt: time.Now()}
	store.rows["retired_vuln"] = LevelSetting{VulnerabilityID: "retired_vuln", Level: LevelLow}
	store.rows["csrf"] = LevelSetting{VulnerabilityID: "csrf", Level: Level("corrupt")}

	ls := NewLevelStore(store, knownVulns, LevelHigh)
	all := ls.AllLevels(context.Background())

	require.Len(t, all, len(knownVulns))
	assert.Equal(t, LevelMedium, all["sql_injection"])
	assert.Equal(t, LevelHigh, all["csrf"], "unparseable stored level falls back to default")
	assert.NotContains(t, all, "retired_vuln")
}
