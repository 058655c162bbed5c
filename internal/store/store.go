// ABOUTME: Store interface and row types for waypoint persistence
// ABOUTME: Defines Holder, Folder, Waypoint records and the Store contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Invariant errors raised inside a unit of work.
var (
	ErrDuplicateName  = errors.New("duplicate name")
	ErrCrossHolder    = errors.New("folder belongs to a different holder")
	ErrHolderNotFound = errors.New("holder not found")
	ErrInvalidPolicy  = errors.New("invalid cascade policy")
)

// Holder types as stored in holders.type
const (
	HolderTypeIndividual = "individual"
	HolderTypeGroup      = "group"
	HolderTypeGlobal     = "global"
)

// CascadePolicy decides what happens to the waypoints of a deleted folder.
type CascadePolicy string

const (
	// CascadeDetach clears the folder reference, keeping the waypoints top-level.
	CascadeDetach CascadePolicy = "detach"
	// CascadeDelete removes the waypoints together with the folder.
	CascadeDelete CascadePolicy = "delete"
)

// Valid reports whether p is a known policy.
func (p CascadePolicy) Valid() bool {
	return p == CascadeDetach || p == CascadeDelete
}

// Holder is the owning scope of folders and waypoints
type Holder struct {
	ID        string
	Type      string // individual, group, global
	OwnerKey  string // empty for the singleton global/group holders
	CreatedAt time.Time
}

// Folder is a flat grouping of waypoints inside one holder
type Folder struct {
	ID          string
	HolderID    string
	Name        string
	Description string // stored as NULL when empty
	Icon        string
	CreatedAt   time.Time
}

// Waypoint is a named location owned by one holder and at most one folder
type Waypoint struct {
	ID          string
	HolderID    string
	FolderID    *string // nil for top-level waypoints
	Name        string
	Description string
	World       string
	X, Y, Z     float64
	Icon        string
	Visibility  string // required capability token; empty means everyone
	CreatedBy   string
	CreatedAt   time.Time
}

// WaypointFilter scopes waypoint listings and counts to a holder.
// FolderID restricts to one folder; TopLevel restricts to waypoints without one.
// Setting both is a programming error and TopLevel wins.
type WaypointFilter struct {
	HolderID string
	FolderID *string
	TopLevel bool
}

// Store defines the persistence contract used by the holder store.
// Every mutating method runs as exactly one transaction.
type Store interface {
	// Holders
	EnsureHolder(ctx context.Context, holderType, ownerKey string) (*Holder, error)
	GetHolder(ctx context.Context, id string) (*Holder, error)
	ListHolders(ctx context.Context) ([]*Holder, error)

	// Folders
	CreateFolder(ctx context.Context, folder *Folder) error
	GetFolder(ctx context.Context, id string) (*Folder, error)
	ListFolders(ctx context.Context, holderID string) ([]*Folder, error)
	CountFolders(ctx context.Context, holderID string) (int, error)
	FolderNameExists(ctx context.Context, holderID, name string) (bool, error)
	UpdateFolder(ctx context.Context, folder *Folder) error
	DeleteFolder(ctx context.Context, id string, policy CascadePolicy) ([]string, error)

	// Waypoints
	CreateWaypoint(ctx context.Context, waypoint *Waypoint) error
	GetWaypoint(ctx context.Context, id string) (*Waypoint, error)
	ListWaypoints(ctx context.Context, filter WaypointFilter) ([]*Waypoint, error)
	CountWaypoints(ctx context.Context, filter WaypointFilter) (int, error)
	CountWaypointsByVisibility(ctx context.Context, filter WaypointFilter) (map[string]int, error)
	WaypointNameExists(ctx context.Context, holderID, name string) (bool, error)
	UpdateWaypoint(ctx context.Context, waypoint *Waypoint) error
	MoveWaypoint(ctx context.Context, id string, folderID *string) (bool, error)
	DeleteWaypoint(ctx context.Context, id string) error

	// ListHolderContents returns folders and waypoints from one snapshot.
	ListHolderContents(ctx context.Context, holderID string) ([]*Folder, []*Waypoint, error)

	// Audit trail
	AppendAuditLog(ctx context.Context, entry *AuditEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)

	// Close releases any resources held by the store
	Close() error
}
