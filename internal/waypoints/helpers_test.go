// ABOUTME: Shared fixtures for holder store tests
// ABOUTME: Builds a Manager over a temporary SQLite database

package waypoints

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wordmann/waypoints/internal/store"
)

var here = Location{World: "overworld", X: 12.5, Y: 64, Z: -8}

type capSet map[string]bool

func (c capSet) Has(token string) bool { return c[token] }

func setupStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "waypoints.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func setupManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := NewManager(setupStore(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func setupHolder(t *testing.T, m *Manager, typ HolderType, ownerKey string) *Holder {
	t.Helper()
	return wait(t, m.Holder(t.Context(), typ, ownerKey))
}

// wait blocks on task and fails the test on error.
func wait[T any](t *testing.T, task *Task[T]) T {
	t.Helper()
	v, err := task.Wait()
	require.NoError(t, err)
	return v
}

func names[T interface{ Name() string }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name())
	}
	return out
}
