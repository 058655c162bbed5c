// ABOUTME: Case-insensitive comparison keys for folder and waypoint names
// ABOUTME: Backs the UNIQUE(holder_id, name_key) constraints with full Unicode folding

package store

import (
	"strings"

	"golang.org/x/text/cases"
)

// NameKey returns the key under which a name is unique within its holder.
// SQLite's lower() only folds ASCII, so the key is computed here and stored.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
