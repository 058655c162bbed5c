// ABOUTME: Holder is the aggregate root for one holder's folders and waypoints
// ABOUTME: Serializes mutations per holder and brackets destructive ones with events

package waypoints

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wordmann/waypoints/internal/events"
	"github.com/wordmann/waypoints/internal/store"
)

// Holder is the live handle of one holder. All methods are safe for
// concurrent use; mutations of the same holder run one at a time.
type Holder struct {
	m         *Manager
	id        string
	typ       HolderType
	ownerKey  string
	createdAt time.Time

	// sem is the holder's write lock. A channel lets waiters give up when
	// their context ends.
	sem chan struct{}
}

func newHolder(m *Manager, rec *store.Holder) *Holder {
	return &Holder{
		m:         m,
		id:        rec.ID,
		typ:       HolderType(rec.Type),
		ownerKey:  rec.OwnerKey,
		createdAt: rec.CreatedAt,
		sem:       make(chan struct{}, 1),
	}
}

func (h *Holder) ID() string           { return h.id }
func (h *Holder) Type() HolderType     { return h.typ }
func (h *Holder) OwnerKey() string     { return h.ownerKey }
func (h *Holder) CreatedAt() time.Time { return h.createdAt }

// SupportsVisibility reports whether waypoint visibility tokens apply here.
func (h *Holder) SupportsVisibility() bool {
	return h.typ.SupportsVisibility()
}

// Label is a short human-readable identity such as "individual:alice".
func (h *Holder) Label() string {
	if h.ownerKey == "" {
		return string(h.typ)
	}
	return string(h.typ) + ":" + h.ownerKey
}

// withLock runs write while holding the holder's write lock.
func (h *Holder) withLock(ctx context.Context, op string, write func(ctx context.Context) error) error {
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	defer func() { <-h.sem }()

	return write(ctx)
}

// veto emits the pre-event and turns a cancellation into a VetoError.
func (h *Holder) veto(ctx context.Context, op string, e events.Event) error {
	pe := h.m.bus.EmitPre(ctx, e)
	if pe.Cancelled() {
		return &VetoError{Op: op, Reason: pe.Reason()}
	}
	return nil
}

// notify emits a post-event. The write has committed, so the caller's
// cancellation no longer applies to observers.
func (h *Holder) notify(ctx context.Context, e events.Event) {
	h.m.bus.EmitPost(context.WithoutCancel(ctx), e)
}

// ListFolders returns the holder's folders ordered by name, then ID.
func (h *Holder) ListFolders(ctx context.Context) *Task[[]*Folder] {
	return Go(ctx, h.listFolders)
}

func (h *Holder) listFolders(ctx context.Context) ([]*Folder, error) {
	recs, err := h.m.store.ListFolders(ctx, h.id)
	if err != nil {
		return nil, classify(ctx, "list folders", err)
	}
	folders := make([]*Folder, 0, len(recs))
	for _, rec := range recs {
		folders = append(folders, newFolder(h, rec))
	}
	return folders, nil
}

// ListTopLevelWaypoints returns the waypoints that are not in a folder.
func (h *Holder) ListTopLevelWaypoints(ctx context.Context) *Task[[]*Waypoint] {
	return Go(ctx, func(ctx context.Context) ([]*Waypoint, error) {
		return h.listWaypoints(ctx, store.WaypointFilter{HolderID: h.id, TopLevel: true}, nil)
	})
}

// ListAllWaypoints returns every waypoint of the holder, folder or not.
func (h *Holder) ListAllWaypoints(ctx context.Context) *Task[[]*Waypoint] {
	return Go(ctx, func(ctx context.Context) ([]*Waypoint, error) {
		return h.listWaypoints(ctx, store.WaypointFilter{HolderID: h.id}, nil)
	})
}

// listWaypoints loads the waypoints in scope, keeping those visible to caps.
func (h *Holder) listWaypoints(ctx context.Context, filter store.WaypointFilter, caps Capabilities) ([]*Waypoint, error) {
	recs, err := h.m.store.ListWaypoints(ctx, filter)
	if err != nil {
		return nil, classify(ctx, "list waypoints", err)
	}
	return h.visibleWaypoints(recs, caps), nil
}

func (h *Holder) visibleWaypoints(recs []*store.Waypoint, caps Capabilities) []*Waypoint {
	waypoints := make([]*Waypoint, 0, len(recs))
	for _, rec := range recs {
		if !visibleTo(h.typ, caps, rec.Visibility) {
			continue
		}
		waypoints = append(waypoints, newWaypoint(h, rec))
	}
	return waypoints
}

// CountWaypoints counts every waypoint of the holder.
func (h *Holder) CountWaypoints(ctx context.Context) *Task[int] {
	return Go(ctx, func(ctx context.Context) (int, error) {
		n, err := h.m.store.CountWaypoints(ctx, store.WaypointFilter{HolderID: h.id})
		return n, classify(ctx, "count waypoints", err)
	})
}

// CountFolders counts the holder's folders.
func (h *Holder) CountFolders(ctx context.Context) *Task[int] {
	return Go(ctx, func(ctx context.Context) (int, error) {
		n, err := h.m.store.CountFolders(ctx, h.id)
		return n, classify(ctx, "count folders", err)
	})
}

// CountVisibleWaypoints counts the waypoints caps may see. For holders
// without visibility filtering it equals CountWaypoints.
func (h *Holder) CountVisibleWaypoints(ctx context.Context, caps Capabilities) *Task[int] {
	return Go(ctx, func(ctx context.Context) (int, error) {
		return h.countVisible(ctx, store.WaypointFilter{HolderID: h.id}, caps)
	})
}

func (h *Holder) countVisible(ctx context.Context, filter store.WaypointFilter, caps Capabilities) (int, error) {
	if !h.typ.SupportsVisibility() || caps == nil {
		n, err := h.m.store.CountWaypoints(ctx, filter)
		return n, classify(ctx, "count waypoints", err)
	}

	byToken, err := h.m.store.CountWaypointsByVisibility(ctx, filter)
	if err != nil {
		return 0, classify(ctx, "count visible waypoints", err)
	}
	total := 0
	for token, n := range byToken {
		if visibleTo(h.typ, caps, token) {
			total += n
		}
	}
	return total, nil
}

// IsDuplicateWaypointName reports whether name is taken by any waypoint of
// the holder, ignoring case.
func (h *Holder) IsDuplicateWaypointName(ctx context.Context, name string) *Task[bool] {
	name = strings.TrimSpace(name)
	return Go(ctx, func(ctx context.Context) (bool, error) {
		if name == "" {
			return false, nil
		}
		ok, err := h.m.store.WaypointNameExists(ctx, h.id, name)
		return ok, classify(ctx, "check waypoint name", err)
	})
}

// IsDuplicateFolderName reports whether name is taken by a folder of the
// holder, ignoring case.
func (h *Holder) IsDuplicateFolderName(ctx context.Context, name string) *Task[bool] {
	name = strings.TrimSpace(name)
	return Go(ctx, func(ctx context.Context) (bool, error) {
		if name == "" {
			return false, nil
		}
		ok, err := h.m.store.FolderNameExists(ctx, h.id, name)
		return ok, classify(ctx, "check folder name", err)
	})
}

// CreateFolder creates a folder. It fails with ErrDuplicateName when a
// folder of the same name exists, ignoring case.
func (h *Holder) CreateFolder(ctx context.Context, name string, opts ...FolderOption) *Task[*Folder] {
	name = strings.TrimSpace(name)
	if name == "" {
		return failed[*Folder](invalidArgument("folder name must not be empty"))
	}

	rec := &store.Folder{HolderID: h.id, Name: name}
	for _, opt := range opts {
		opt(rec)
	}

	return Go(ctx, func(ctx context.Context) (*Folder, error) {
		err := h.withLock(ctx, "create folder", func(ctx context.Context) error {
			return classify(ctx, "create folder", h.m.store.CreateFolder(ctx, rec))
		})
		if err != nil {
			return nil, err
		}

		f := newFolder(h, rec)
		h.notify(ctx, f.event(events.OpCreate))
		return f, nil
	})
}

// CreateWaypoint creates a waypoint at loc. It fails with ErrDuplicateName
// when any waypoint of the holder has the same name, ignoring case.
func (h *Holder) CreateWaypoint(ctx context.Context, name string, loc Location, opts ...WaypointOption) *Task[*Waypoint] {
	name = strings.TrimSpace(name)
	if name == "" {
		return failed[*Waypoint](invalidArgument("waypoint name must not be empty"))
	}

	var params waypointParams
	for _, opt := range opts {
		opt(&params)
	}

	rec := &store.Waypoint{
		HolderID:    h.id,
		Name:        name,
		Description: params.description,
		World:       loc.World,
		X:           loc.X,
		Y:           loc.Y,
		Z:           loc.Z,
		Icon:        params.icon,
		CreatedBy:   params.creator,
	}
	if h.typ.SupportsVisibility() {
		rec.Visibility = params.visibility
	}
	if params.folder != nil {
		if params.folder.holder.id != h.id {
			return failed[*Waypoint](invalidArgument("folder %s belongs to another holder", params.folder.ID()))
		}
		folderID := params.folder.ID()
		rec.FolderID = &folderID
	}

	return Go(ctx, func(ctx context.Context) (*Waypoint, error) {
		err := h.withLock(ctx, "create waypoint", func(ctx context.Context) error {
			return classify(ctx, "create waypoint", h.m.store.CreateWaypoint(ctx, rec))
		})
		if err != nil {
			return nil, err
		}

		w := newWaypoint(h, rec)
		h.notify(ctx, w.event(events.OpCreate))
		return w, nil
	})
}

// FolderOption sets optional attributes on a new folder.
type FolderOption func(*store.Folder)

// FolderDescription sets the description of a new folder.
func FolderDescription(description string) FolderOption {
	return func(f *store.Folder) { f.Description = description }
}

// FolderIcon sets the display icon of a new folder.
func FolderIcon(icon string) FolderOption {
	return func(f *store.Folder) { f.Icon = icon }
}

type waypointParams struct {
	creator     string
	description string
	icon        string
	visibility  string
	folder      *Folder
}

// WaypointOption sets optional attributes on a new waypoint.
type WaypointOption func(*waypointParams)

// CreatedBy records the identity that created the waypoint.
func CreatedBy(creator string) WaypointOption {
	return func(s *waypointParams) { s.creator = creator }
}

// WaypointDescription sets the description of a new waypoint.
func WaypointDescription(description string) WaypointOption {
	return func(s *waypointParams) { s.description = description }
}

// WaypointIcon sets the display icon of a new waypoint.
func WaypointIcon(icon string) WaypointOption {
	return func(s *waypointParams) { s.icon = icon }
}

// VisibleWith gates the waypoint behind a capability token. It only takes
// effect on holders that support visibility filtering.
func VisibleWith(token string) WaypointOption {
	return func(s *waypointParams) { s.visibility = token }
}

// InFolder places the new waypoint in f, which must belong to the same holder.
func InFolder(f *Folder) WaypointOption {
	return func(s *waypointParams) { s.folder = f }
}
