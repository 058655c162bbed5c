// ABOUTME: Tests for folder store operations
// ABOUTME: Covers create, case-insensitive duplicates, update, and both delete cascade policies

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")

	f := &Folder{HolderID: h.ID, Name: "Trips", Description: "summer", Icon: "map"}
	require.NoError(t, store.CreateFolder(ctx, f))
	assert.NotEmpty(t, f.ID)
	assert.False(t, f.CreatedAt.IsZero())

	got, err := store.GetFolder(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trips", got.Name)
	assert.Equal(t, "summer", got.Description)
	assert.Equal(t, "map", got.Icon)
	assert.Equal(t, h.ID, got.HolderID)
}

func TestFolderStore_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetFolder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFolderStore_DuplicateNameIgnoresCase(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")
	mustFolder(t, store, h.ID, "Trips")

	for _, name := range []string{"Trips", "trips", "TRIPS", "tRiPs"} {
		err := store.CreateFolder(ctx, &Folder{HolderID: h.ID, Name: name})
		assert.ErrorIs(t, err, ErrDuplicateName, name)
	}

	exists, err := store.FolderNameExists(ctx, h.ID, "tRIPS")
	require.NoError(t, err)
	assert.True(t, exists)

	// Another holder may reuse the name.
	other := mustHolder(t, store, HolderTypeIndividual, "bob")
	assert.NoError(t, store.CreateFolder(ctx, &Folder{HolderID: other.ID, Name: "Trips"}))
}

func TestFolderStore_ConcurrentCreateOneWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeGroup, "")

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.CreateFolder(ctx, &Folder{HolderID: h.ID, Name: "Shared"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateName)
	}
	assert.Equal(t, 1, succeeded)

	n, err := store.CountFolders(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFolderStore_ListOrderedByName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")

	mustFolder(t, store, h.ID, "charlie")
	mustFolder(t, store, h.ID, "Alpha")
	mustFolder(t, store, h.ID, "bravo")

	folders, err := store.ListFolders(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, "Alpha", folders[0].Name)
	assert.Equal(t, "bravo", folders[1].Name)
	assert.Equal(t, "charlie", folders[2].Name)

	again, err := store.ListFolders(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, folders, again)
}

func TestFolderStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")
	f := mustFolder(t, store, h.ID, "Trips")
	mustFolder(t, store, h.ID, "Mines")

	// Case-only rename of itself is allowed.
	f.Name = "TRIPS"
	f.Description = "all of them"
	require.NoError(t, store.UpdateFolder(ctx, f))

	got, err := store.GetFolder(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRIPS", got.Name)
	assert.Equal(t, "all of them", got.Description)

	f.Name = "mines"
	assert.ErrorIs(t, store.UpdateFolder(ctx, f), ErrDuplicateName)

	assert.ErrorIs(t, store.UpdateFolder(ctx, &Folder{ID: "missing", Name: "x"}), ErrNotFound)
}

func TestFolderStore_DeleteDetach(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")
	f := mustFolder(t, store, h.ID, "Trips")
	w := mustWaypoint(t, store, h.ID, &f.ID, "Paris")

	affected, err := store.DeleteFolder(ctx, f.ID, CascadeDetach)
	require.NoError(t, err)
	assert.Equal(t, []string{w.ID}, affected)

	_, err = store.GetFolder(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetWaypoint(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FolderID)
}

func TestFolderStore_DeleteCascade(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")
	f := mustFolder(t, store, h.ID, "Trips")
	inside := mustWaypoint(t, store, h.ID, &f.ID, "Paris")
	outside := mustWaypoint(t, store, h.ID, nil, "Home")

	affected, err := store.DeleteFolder(ctx, f.ID, CascadeDelete)
	require.NoError(t, err)
	assert.Equal(t, []string{inside.ID}, affected)

	_, err = store.GetWaypoint(ctx, inside.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetWaypoint(ctx, outside.ID)
	assert.NoError(t, err)
}

func TestFolderStore_DeleteErrors(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	h := mustHolder(t, store, HolderTypeIndividual, "alice")
	f := mustFolder(t, store, h.ID, "Trips")

	_, err := store.DeleteFolder(ctx, "missing", CascadeDetach)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.DeleteFolder(ctx, f.ID, CascadePolicy("orphan"))
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	n, err := store.CountFolders(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFolderStore_CancelledContextRollsBack(t *testing.T) {
	store := setupTestStore(t)
	h := mustHolder(t, store, HolderTypeIndividual, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.CreateFolder(ctx, &Folder{HolderID: h.ID, Name: "Trips"})
	require.Error(t, err)

	exists, err := store.FolderNameExists(context.Background(), h.ID, "Trips")
	require.NoError(t, err)
	assert.False(t, exists)
}
