// Package prefs persists small per-profile preferences as JSON values.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissing is returned by Store.Get when no value is stored.
var ErrMissing = errors.New("prefs: missing")

// Store holds raw JSON values per (profile, key).
type Store interface {
	Get(ctx context.Context, profile, key string) ([]byte, error)
	Set(ctx context.Context, profile, key string, value []byte) error
	Close() error
}

// Key is a typed preference with a fallback value.
type Key[T any] struct {
	Name    string
	Default T
}

// Get returns the stored value, or Default when the value is missing or
// cannot be decoded into T.
func (k Key[T]) Get(ctx context.Context, s Store, profile string) T {
	raw, err := s.Get(ctx, profile, k.Name)
	if err != nil {
		return k.Default
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return k.Default
	}
	return v
}

// Set stores v.
func (k Key[T]) Set(ctx context.Context, s Store, profile string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("prefs: encode %s: %w", k.Name, err)
	}
	return s.Set(ctx, profile, k.Name, raw)
}

// Theme values.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Themes lists the accepted themes.
var Themes = []string{ThemeSystem, ThemeLight, ThemeDark}

// Known keys.
var (
	LastModel  = Key[string]{Name: "last_model"}
	PanelWidth = Key[int]{Name: "panel_width", Default: 360}
	Theme      = Key[string]{Name: "theme", Default: ThemeSystem}
	// TTSFlags maps model name to whether the generate-audio action is shown.
	TTSFlags = Key[map[string]bool]{Name: "tts_flags", Default: map[string]bool{}}
)

// Columns is the column-visibility key for a model.
func Columns(model string) Key[map[string]bool] {
	return Key[map[string]bool]{Name: "columns:" + model}
}
