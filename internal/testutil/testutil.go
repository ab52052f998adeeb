// Package testutil provides shared test helpers: a fake host API and a
// throwaway preferences database.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/flashdesk/internal/prefs"
)

// TestPrefs opens a preferences database in a temporary directory that is
// removed when the test ends.
func TestPrefs(t *testing.T) *prefs.SQLite {
	t.Helper()
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
