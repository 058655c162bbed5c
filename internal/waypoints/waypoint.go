// ABOUTME: Waypoint is the live handle of one waypoint row
// ABOUTME: Setters persist immediately; MoveTo and Delete are vetoable through pre-events

package waypoints

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wordmann/waypoints/internal/events"
	"github.com/wordmann/waypoints/internal/store"
)

// Waypoint is a live waypoint handle. Getters return the state as of the
// last operation through this handle.
type Waypoint struct {
	holder *Holder

	mu      sync.RWMutex
	rec     store.Waypoint
	deleted bool
}

func newWaypoint(h *Holder, rec *store.Waypoint) *Waypoint {
	w := &Waypoint{holder: h, rec: *rec}
	if rec.FolderID != nil {
		id := *rec.FolderID
		w.rec.FolderID = &id
	}
	return w
}

func (w *Waypoint) Holder() *Holder { return w.holder }

func (w *Waypoint) ID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.ID
}

func (w *Waypoint) Name() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.Name
}

func (w *Waypoint) Description() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.Description
}

func (w *Waypoint) Location() Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Location{World: w.rec.World, X: w.rec.X, Y: w.rec.Y, Z: w.rec.Z}
}

func (w *Waypoint) Icon() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.Icon
}

// Visibility is the capability token needed to see the waypoint, or "".
func (w *Waypoint) Visibility() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.Visibility
}

func (w *Waypoint) CreatedBy() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.CreatedBy
}

func (w *Waypoint) CreatedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rec.CreatedAt
}

// FolderID returns the containing folder's ID and false for top-level waypoints.
func (w *Waypoint) FolderID() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.rec.FolderID == nil {
		return "", false
	}
	return *w.rec.FolderID, true
}

// Deleted reports whether Delete succeeded through this handle.
func (w *Waypoint) Deleted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.deleted
}

// VisibleTo reports whether caps may see the waypoint in its holder.
func (w *Waypoint) VisibleTo(caps Capabilities) bool {
	return visibleTo(w.holder.typ, caps, w.Visibility())
}

func (w *Waypoint) snapshot() (store.Waypoint, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec := w.rec
	if rec.FolderID != nil {
		id := *rec.FolderID
		rec.FolderID = &id
	}
	return rec, w.deleted
}

// refresh replaces the handle state with the persisted row.
func (w *Waypoint) refresh(ctx context.Context, op string) error {
	rec, err := w.holder.m.store.GetWaypoint(ctx, w.ID())
	if err != nil {
		return classify(ctx, op, err)
	}
	w.mu.Lock()
	w.rec = *rec
	w.mu.Unlock()
	return nil
}

func (w *Waypoint) event(op events.Operation) events.Event {
	rec, _ := w.snapshot()
	return events.Event{
		Kind:       events.KindWaypoint,
		Op:         op,
		HolderID:   rec.HolderID,
		EntityID:   rec.ID,
		EntityName: rec.Name,
		Entity:     rec,
	}
}

// SetName renames the waypoint. The new name must be unused by every other
// waypoint of the holder, ignoring case.
func (w *Waypoint) SetName(ctx context.Context, name string) *Task[Unit] {
	name = strings.TrimSpace(name)
	if name == "" {
		return failed[Unit](invalidArgument("waypoint name must not be empty"))
	}
	return w.update(ctx, "rename waypoint", func(r *store.Waypoint) { r.Name = name })
}

// SetDescription replaces the description. Empty clears it.
func (w *Waypoint) SetDescription(ctx context.Context, description string) *Task[Unit] {
	return w.update(ctx, "describe waypoint", func(r *store.Waypoint) { r.Description = description })
}

// SetIcon replaces the display icon.
func (w *Waypoint) SetIcon(ctx context.Context, icon string) *Task[Unit] {
	return w.update(ctx, "set waypoint icon", func(r *store.Waypoint) { r.Icon = icon })
}

// SetLocation moves the waypoint to loc.
func (w *Waypoint) SetLocation(ctx context.Context, loc Location) *Task[Unit] {
	return w.update(ctx, "relocate waypoint", func(r *store.Waypoint) {
		r.World, r.X, r.Y, r.Z = loc.World, loc.X, loc.Y, loc.Z
	})
}

// SetVisibility gates the waypoint behind token; empty makes it public.
// Only holders that support visibility filtering accept a token.
func (w *Waypoint) SetVisibility(ctx context.Context, token string) *Task[Unit] {
	token = strings.TrimSpace(token)
	if token != "" && !w.holder.SupportsVisibility() {
		return failed[Unit](invalidArgument("%s holders do not support visibility tokens", w.holder.typ))
	}
	return w.update(ctx, "set waypoint visibility", func(r *store.Waypoint) { r.Visibility = token })
}

// update reloads the row under the holder lock, applies change, and
// persists it. The handle is refreshed only after commit.
func (w *Waypoint) update(ctx context.Context, op string, change func(*store.Waypoint)) *Task[Unit] {
	h := w.holder
	return Go(ctx, func(ctx context.Context) (Unit, error) {
		snap, deleted := w.snapshot()
		if deleted {
			return Unit{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		var next *store.Waypoint
		err := h.withLock(ctx, op, func(ctx context.Context) error {
			cur, err := h.m.store.GetWaypoint(ctx, snap.ID)
			if err != nil {
				return classify(ctx, op, err)
			}
			change(cur)
			if err := h.m.store.UpdateWaypoint(ctx, cur); err != nil {
				return classify(ctx, op, err)
			}
			next = cur
			return nil
		})
		if err != nil {
			return Unit{}, err
		}

		w.mu.Lock()
		w.rec = *next
		w.mu.Unlock()

		h.notify(ctx, w.event(events.OpUpdate))
		return Unit{}, nil
	})
}

// Folder returns the containing folder, or nil for a top-level waypoint.
func (w *Waypoint) Folder(ctx context.Context) *Task[*Folder] {
	return Go(ctx, func(ctx context.Context) (*Folder, error) {
		folderID, ok := w.FolderID()
		if !ok {
			return nil, nil
		}
		rec, err := w.holder.m.store.GetFolder(ctx, folderID)
		if err != nil {
			return nil, classify(ctx, "get folder", err)
		}
		return newFolder(w.holder, rec), nil
	})
}

// MoveTo puts the waypoint into folder, or at the top level when folder is
// nil. The folder must belong to the same holder. Observers may veto.
// Moving to the folder the stored row is already in succeeds without events.
func (w *Waypoint) MoveTo(ctx context.Context, folder *Folder) *Task[Unit] {
	h := w.holder
	var target *string
	if folder != nil {
		if folder.holder.id != h.id {
			return failed[Unit](invalidArgument("folder %s belongs to another holder", folder.ID()))
		}
		id := folder.ID()
		target = &id
	}

	return Go(ctx, func(ctx context.Context) (Unit, error) {
		const op = "move waypoint"
		if w.Deleted() {
			return Unit{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		if folder != nil && folder.Deleted() {
			return Unit{}, fmt.Errorf("%s: folder: %w", op, ErrNotFound)
		}

		if err := w.refresh(ctx, op); err != nil {
			return Unit{}, err
		}
		from, _ := w.FolderID()
		to := ""
		if target != nil {
			to = *target
		}
		if from == to {
			return Unit{}, nil
		}
		detail := map[string]any{"from": from, "to": to}

		pre := w.event(events.OpMove)
		pre.Detail = detail
		if err := h.veto(ctx, op, pre); err != nil {
			return Unit{}, err
		}

		var moved bool
		err := h.withLock(ctx, op, func(ctx context.Context) error {
			var err error
			moved, err = h.m.store.MoveWaypoint(ctx, w.ID(), target)
			return classify(ctx, op, err)
		})
		if err != nil {
			return Unit{}, err
		}

		w.mu.Lock()
		w.rec.FolderID = target
		w.mu.Unlock()
		if !moved {
			return Unit{}, nil
		}

		post := w.event(events.OpMove)
		post.Detail = detail
		h.notify(ctx, post)
		return Unit{}, nil
	})
}

// Delete removes the waypoint after observers approve. A veto returns
// ErrCancelled and leaves the waypoint in place.
func (w *Waypoint) Delete(ctx context.Context) *Task[Unit] {
	h := w.holder
	return Go(ctx, func(ctx context.Context) (Unit, error) {
		const op = "delete waypoint"
		if w.Deleted() {
			return Unit{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		if err := w.refresh(ctx, op); err != nil {
			return Unit{}, err
		}
		if err := h.veto(ctx, op, w.event(events.OpDelete)); err != nil {
			return Unit{}, err
		}

		err := h.withLock(ctx, op, func(ctx context.Context) error {
			return classify(ctx, op, h.m.store.DeleteWaypoint(ctx, w.ID()))
		})
		if err != nil {
			return Unit{}, err
		}

		w.mu.Lock()
		w.deleted = true
		w.mu.Unlock()

		h.notify(ctx, w.event(events.OpDelete))
		return Unit{}, nil
	})
}
