package security

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Level is the configurable difficulty of one vulnerability demo.
type Level string

const (
	LevelLow        Level = "low"
	LevelMedium     Level = "medium"
	LevelHigh       Level = "high"
	LevelImpossible Level = "impossible"
)

// Levels lists the recognized levels in ascending difficulty.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh, LevelImpossible}
}

// ParseLevel validates a raw level string.
func ParseLevel(raw string) (Level, error) {
	switch Level(raw) {
	case LevelLow, LevelMedium, LevelHigh, LevelImpossible:
		return Level(raw), nil
	}
	return "", fmt.Errorf("%q: %w", raw, ErrInvalidLevel)
}

// LevelSetting is one persisted security-level row.
type LevelSetting struct {
	VulnerabilityID string    `json:"vulnerability_id"`
	Level           Level     `json:"level"`
	UpdatedBy       int64     `json:"updated_by"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SettingStore is the persistence collaborator for security levels:
// rows keyed by vulnerability identifier in a relational table.
type SettingStore interface {
	// Setting returns the stored row, or ok=false if none exists.
	Setting(ctx context.Context, vulnerabilityID string) (LevelSetting, bool, error)
	// UpsertSetting creates or overwrites the row. Must be idempotent.
	UpsertSetting(ctx context.Context, s LevelSetting) error
	// Settings returns all stored rows.
	Settings(ctx context.Context) ([]LevelSetting, error)
}

// LevelStore resolves and mutates the per-vulnerability security levels.
// Reads never fail: anything unknown or unreadable resolves to the
// configured default.
type LevelStore struct {
	store   SettingStore
	known   []string
	def     Level
	now     func() time.Time
}

// NewLevelStore creates a level store over the given persistence layer.
// known lists every recognized vulnerability identifier; def is the
// level unknown or unset identifiers resolve to.
func NewLevelStore(store SettingStore, known []string, def Level) *LevelStore {
	ids := append([]string(nil), known...)
	sort.Strings(ids)
	return &LevelStore{store: store, known: ids, def: def, now: time.Now}
}

// Known returns the recognized vulnerability identifiers, sorted.
func (ls *LevelStore) Known() []string {
	return append([]string(nil), ls.known...)
}

// Default returns the configured default level.
func (ls *LevelStore) Default() Level { return ls.def }

// GetLevel returns the stored level for the vulnerability, or the
// default when unset or unreadable. It never fails.
func (ls *LevelStore) GetLevel(ctx context.Context, vulnerabilityID string) Level {
	s, ok, err := ls.store.Setting(ctx, vulnerabilityID)
	if err != nil || !ok {
		return ls.def
	}
	if _, err := ParseLevel(string(s.Level)); err != nil {
		return ls.def
	}
	return s.Level
}

// SetLevel validates and upserts the level for a vulnerability,
// recording who changed it and when. Setting the same level twice yields
// identical stored state.
func (ls *LevelStore) SetLevel(ctx context.Context, vulnerabilityID string, level Level, actorUserID int64) error {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return err
	}
	setting := LevelSetting{
		VulnerabilityID: vulnerabilityID,
		Level:           parsed,
		UpdatedBy:       actorUserID,
		UpdatedAt:       ls.now().UTC(),
	}
	if err := ls.store.UpsertSetting(ctx, setting); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

// ResetAll overwrites every known vulnerability back to the default
// level as one logical operation. If any individual write fails the
// whole operation fails with a single aggregate error, so callers can
// always distinguish "all succeeded" from "some failed".
func (ls *LevelStore) ResetAll(ctx context.Context, actorUserID int64) error {
	var failures []error
	at := ls.now().UTC()
	for _, id := range ls.known {
		err := ls.store.UpsertSetting(ctx, LevelSetting{
			VulnerabilityID: id,
			Level:           ls.def,
			UpdatedBy:       actorUserID,
			UpdatedAt:       at,
		})
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", id, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", ErrStoreWrite, errors.Join(failures...))
	}
	return nil
}

// AllLevels returns a snapshot of every known vulnerability's current
// level, filling in the default for identifiers with no stored row.
func (ls *LevelStore) AllLevels(ctx context.Context) map[string]Level {
	out := make(map[string]Level, len(ls.known))
	for _, id := range ls.known {
		out[id] = ls.def
	}
	settings, err := ls.store.Settings(ctx)
	if err != nil {
		return out
	}
	for _, s := range settings {
		if _, known := out[s.VulnerabilityID]; !known {
			continue
		}
		if _, err := ParseLevel(string(s.Level)); err != nil {
			continue
		}
		out[s.VulnerabilityID] = s.Level
	}
	return out
}
