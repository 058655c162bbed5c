// ABOUTME: Tests for Folder handles
// ABOUTME: Covers persisted setters, vetoable deletes, event ordering, and both cascade policies

package waypoints

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordmann/waypoints/internal/events"
	"github.com/wordmann/waypoints/internal/store"
)

// recorder captures the phases observed on a bus, in order.
type recorder struct {
	mu    sync.Mutex
	seen  []string
	pres  []events.Event
	posts []events.Event
}

func (r *recorder) attach(ctx context.Context, bus *events.Bus, filter events.Filter) {
	bus.OnPre(ctx, filter, func(_ context.Context, e *events.PreEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, "pre:"+string(e.Kind)+"."+string(e.Op))
		r.pres = append(r.pres, e.Event)
	})
	bus.OnPost(ctx, filter, func(_ context.Context, e events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, "post:"+string(e.Kind)+"."+string(e.Op))
		r.posts = append(r.posts, e)
		return nil
	})
}

func (r *recorder) phases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestFolder_SettersPersist(t *testing.T) {
	for _, typ := range []HolderType{Individual, Group, Global} {
		t.Run(string(typ), func(t *testing.T) {
			m := setupManager(t, Options{})
			ctx := t.Context()
			h := setupHolder(t, m, typ, "owner")

			f := wait(t, h.CreateFolder(ctx, "Test"))
			wait(t, f.SetName(ctx, "Other name"))
			wait(t, f.SetDescription(ctx, "Some description"))
			wait(t, f.SetIcon(ctx, "grass_block"))

			folders := wait(t, h.ListFolders(ctx))
			require.Len(t, folders, 1)
			got := folders[0]
			assert.Equal(t, "Other name", got.Name())
			assert.Equal(t, "Some description", got.Description())
			assert.Equal(t, "grass_block", got.Icon())

			// The handle reflects the committed state too.
			assert.Equal(t, "Other name", f.Name())
		})
	}
}

func TestFolder_CreateWithOptions(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Global, "")

	f := wait(t, h.CreateFolder(ctx, "Trips", FolderDescription("summer"), FolderIcon("map")))
	got := wait(t, m.FolderByID(ctx, f.ID()))
	assert.Equal(t, "summer", got.Description())
	assert.Equal(t, "map", got.Icon())
	assert.Same(t, h, got.Holder())
	assert.False(t, got.CreatedAt().IsZero())
}

func TestFolder_SetNameRules(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Individual, "alice")
	trips := wait(t, h.CreateFolder(ctx, "Trips"))
	wait(t, h.CreateFolder(ctx, "Mines"))

	wait(t, trips.SetName(ctx, "TRIPS"))
	assert.Equal(t, "TRIPS", trips.Name())

	_, err := trips.SetName(ctx, "mines").Wait()
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, "TRIPS", trips.Name(), "failed rename leaves the handle alone")

	_, err = trips.SetName(ctx, " ").Wait()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFolder_UpdateEmitsPostOnly(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Global, "")
	f := wait(t, h.CreateFolder(ctx, "Trips"))

	var rec recorder
	rec.attach(ctx, m.Bus(), events.Filter{Kind: events.KindFolder})

	wait(t, f.SetDescription(ctx, "x"))
	assert.Equal(t, []string{"post:folder.update"}, rec.phases())
}

func TestFolder_DeleteFiresPreBeforePost(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Individual, "alice")
	f := wait(t, h.CreateFolder(ctx, "Test"))
	require.Equal(t, 1, wait(t, h.CountFolders(ctx)))

	var rec recorder
	rec.attach(ctx, m.Bus(), events.Filter{Op: events.OpDelete})

	wait(t, f.Delete(ctx))

	assert.Equal(t, []string{"pre:folder.delete", "post:folder.delete"}, rec.phases())
	assert.Equal(t, 0, wait(t, h.CountFolders(ctx)))
	assert.True(t, f.Deleted())
}

func TestFolder_DeleteVetoed(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Individual, "alice")
	f := wait(t, h.CreateFolder(ctx, "Test"))
	wait(t, h.CreateWaypoint(ctx, "Inside", here, InFolder(f)))
	before := wait(t, h.CountFolders(ctx))

	var rec recorder
	m.Bus().OnPre(ctx, events.Filter{Kind: events.KindFolder, Op: events.OpDelete},
		func(_ context.Context, e *events.PreEvent) { e.Cancel("protected folder") })
	rec.attach(ctx, m.Bus(), events.Filter{})

	_, err := f.Delete(ctx).Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrPersistence)

	var veto *VetoError
	require.True(t, errors.As(err, &veto))
	assert.Equal(t, "protected folder", veto.Reason)

	assert.Equal(t, before, wait(t, h.CountFolders(ctx)))
	assert.Equal(t, 1, wait(t, f.CountWaypoints(ctx)))
	assert.False(t, f.Deleted())
	assert.Equal(t, []string{"pre:folder.delete"}, rec.phases(), "no post-event after a veto")
}

func TestFolder_DeleteSurvivesFailingPostObserver(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Global, "")
	f := wait(t, h.CreateFolder(ctx, "Trips"))

	m.Bus().OnPost(ctx, events.Filter{}, func(context.Context, events.Event) error {
		return errors.New("audit sink down")
	})
	m.Bus().OnPost(ctx, events.Filter{}, func(context.Context, events.Event) error {
		panic("observer crashed")
	})

	wait(t, f.Delete(ctx))
	assert.Equal(t, 0, wait(t, h.CountFolders(ctx)))
}

func TestFolder_DeleteTwice(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Global, "")
	f := wait(t, h.CreateFolder(ctx, "Trips"))
	stale := wait(t, m.FolderByID(ctx, f.ID()))

	wait(t, f.Delete(ctx))

	_, err := f.Delete(ctx).Wait()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.SetName(ctx, "Again").Wait()
	assert.ErrorIs(t, err, ErrNotFound)

	// A second handle to the same row finds it gone in the store.
	_, err = stale.Delete(ctx).Wait()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = stale.SetIcon(ctx, "x").Wait()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFolder_DeleteEventUsesPersistedName(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Global, "")
	f := wait(t, h.CreateFolder(ctx, "Trips"))
	other := wait(t, m.FolderByID(ctx, f.ID()))
	wait(t, other.SetName(ctx, "Journeys"))

	var rec recorder
	rec.attach(ctx, m.Bus(), events.Filter{Kind: events.KindFolder, Op: events.OpDelete})

	wait(t, f.Delete(ctx))
	require.Len(t, rec.pres, 1)
	require.Len(t, rec.posts, 1)
	assert.Equal(t, "Journeys", rec.pres[0].EntityName)
	assert.Equal(t, "Journeys", rec.posts[0].EntityName)
}

func TestFolder_DeletePolicies(t *testing.T) {
	tests := []struct {
		policy        store.CascadePolicy
		wantWaypoints int
	}{
		{store.CascadeDetach, 2},
		{store.CascadeDelete, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			m := setupManager(t, Options{FolderDeletePolicy: tt.policy})
			ctx := t.Context()
			h := setupHolder(t, m, Individual, "alice")
			f := wait(t, h.CreateFolder(ctx, "Trips"))
			inside := wait(t, h.CreateWaypoint(ctx, "Paris", here, InFolder(f)))
			wait(t, h.CreateWaypoint(ctx, "Home", here))

			var rec recorder
			rec.attach(ctx, m.Bus(), events.Filter{Kind: events.KindFolder, Op: events.OpDelete})

			wait(t, f.Delete(ctx))

			assert.Equal(t, tt.wantWaypoints, wait(t, h.CountWaypoints(ctx)))
			require.Len(t, rec.posts, 1)
			assert.Equal(t, []string{inside.ID()}, rec.posts[0].Affected)
			assert.Equal(t, string(tt.policy), rec.posts[0].Detail["policy"])
		})
	}
}

func TestFolder_WaypointsAndCounts(t *testing.T) {
	m := setupManager(t, Options{})
	ctx := t.Context()
	h := setupHolder(t, m, Group, "")
	f := wait(t, h.CreateFolder(ctx, "Shops"))
	wait(t, h.CreateWaypoint(ctx, "Bakery", here, InFolder(f)))
	wait(t, h.CreateWaypoint(ctx, "Armory", here, InFolder(f), VisibleWith("guard")))
	wait(t, h.CreateWaypoint(ctx, "Outside", here))

	assert.Equal(t, []string{"Armory", "Bakery"}, names(wait(t, f.Waypoints(ctx, nil))))
	assert.Equal(t, []string{"Bakery"}, names(wait(t, f.Waypoints(ctx, capSet{}))))
	assert.Equal(t, 2, wait(t, f.CountWaypoints(ctx)))
	assert.Equal(t, 1, wait(t, f.CountVisibleWaypoints(ctx, capSet{})))
	assert.Equal(t, 2, wait(t, f.CountVisibleWaypoints(ctx, capSet{"guard": true})))
}
