// ABOUTME: Value types shared by the holder store: locations, holder types, capabilities
// ABOUTME: Visibility filtering is keyed on the holder type tag

package waypoints

import (
	"fmt"

	"github.com/wordmann/waypoints/internal/store"
)

// Location is an immutable position in a named world.
type Location struct {
	World   string
	X, Y, Z float64
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}

// HolderType tags the scope that owns folders and waypoints.
type HolderType string

const (
	Individual HolderType = store.HolderTypeIndividual
	Group      HolderType = store.HolderTypeGroup
	Global     HolderType = store.HolderTypeGlobal
)

// Valid reports whether t is a known holder type.
func (t HolderType) Valid() bool {
	return t == Individual || t == Group || t == Global
}

// SupportsVisibility reports whether waypoint visibility tokens are enforced
// for holders of this type. Only group holders are permission gated.
func (t HolderType) SupportsVisibility() bool {
	return t == Group
}

// Capabilities answers whether a caller holds a visibility token.
type Capabilities interface {
	Has(token string) bool
}

// visibleTo reports whether a waypoint with the given token is visible.
// A nil Capabilities is a trusted caller and sees everything.
func visibleTo(t HolderType, caps Capabilities, token string) bool {
	if !t.SupportsVisibility() || caps == nil || token == "" {
		return true
	}
	return caps.Has(token)
}
