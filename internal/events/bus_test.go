// ABOUTME: Tests for the lifecycle event bus
// ABOUTME: Covers ordering, veto, filters, observer failures, unsubscribe, and concurrent registration

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func folderDelete(id string) Event {
	return Event{Kind: KindFolder, Op: OpDelete, HolderID: "h1", EntityID: id, EntityName: "Trips"}
}

func TestBus_PreObserversRunInRegistrationOrder(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	var order []int
	for i := range 5 {
		b.OnPre(ctx, Filter{}, func(context.Context, *PreEvent) {
			order = append(order, i)
		})
	}

	pe := b.EmitPre(ctx, folderDelete("f1"))
	assert.False(t, pe.Cancelled())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_CancelIsStickyAndSeenByLaterObservers(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	b.OnPre(ctx, Filter{}, func(_ context.Context, e *PreEvent) { e.Cancel("protected") })
	var sawCancelled bool
	b.OnPre(ctx, Filter{}, func(_ context.Context, e *PreEvent) {
		sawCancelled = e.Cancelled()
		e.Cancel("second reason")
	})

	pe := b.EmitPre(ctx, folderDelete("f1"))
	assert.True(t, pe.Cancelled())
	assert.True(t, sawCancelled)
	assert.Equal(t, "protected", pe.Reason())
}

func TestBus_FilterSelectsKindAndOperation(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	var got []string
	b.OnPost(ctx, Filter{Kind: KindWaypoint}, func(_ context.Context, e Event) error {
		got = append(got, "waypoint:"+string(e.Op))
		return nil
	})
	b.OnPost(ctx, Filter{Op: OpDelete}, func(_ context.Context, e Event) error {
		got = append(got, "delete:"+string(e.Kind))
		return nil
	})

	b.EmitPost(ctx, Event{Kind: KindWaypoint, Op: OpCreate})
	b.EmitPost(ctx, Event{Kind: KindFolder, Op: OpDelete})
	b.EmitPost(ctx, Event{Kind: KindFolder, Op: OpUpdate})

	assert.Equal(t, []string{"waypoint:create", "delete:folder"}, got)
}

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"empty matches all", Filter{}, Event{Kind: KindFolder, Op: OpMove}, true},
		{"kind match", Filter{Kind: KindFolder}, Event{Kind: KindFolder, Op: OpMove}, true},
		{"kind mismatch", Filter{Kind: KindWaypoint}, Event{Kind: KindFolder, Op: OpMove}, false},
		{"both match", Filter{Kind: KindFolder, Op: OpMove}, Event{Kind: KindFolder, Op: OpMove}, true},
		{"op mismatch", Filter{Kind: KindFolder, Op: OpDelete}, Event{Kind: KindFolder, Op: OpMove}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestBus_PostObserverErrorsAndPanicsAreSwallowed(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	var reached bool
	b.OnPost(ctx, Filter{}, func(context.Context, Event) error { return errors.New("audit down") })
	b.OnPost(ctx, Filter{}, func(context.Context, Event) error { panic("boom") })
	b.OnPost(ctx, Filter{}, func(context.Context, Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() { b.EmitPost(ctx, folderDelete("f1")) })
	assert.True(t, reached, "later observers still run")
}

func TestBus_PanickingPreObserverVetoes(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	b.OnPre(ctx, Filter{}, func(context.Context, *PreEvent) { panic("boom") })

	pe := b.EmitPre(ctx, folderDelete("f1"))
	assert.True(t, pe.Cancelled())
	assert.Contains(t, pe.Reason(), "boom")
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	calls := 0
	id := b.OnPre(ctx, Filter{}, func(context.Context, *PreEvent) { calls++ })
	require.NotEmpty(t, id)

	b.EmitPre(ctx, folderDelete("f1"))
	assert.True(t, b.Unsubscribe(id))
	assert.False(t, b.Unsubscribe(id))
	b.EmitPre(ctx, folderDelete("f1"))

	assert.Equal(t, 1, calls)
}

func TestBus_UnsubscribeKeepsOrder(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	var order []string
	record := func(name string) PostObserver {
		return func(context.Context, Event) error {
			order = append(order, name)
			return nil
		}
	}
	b.OnPost(ctx, Filter{}, record("a"))
	mid := b.OnPost(ctx, Filter{}, record("b"))
	b.OnPost(ctx, Filter{}, record("c"))

	b.Unsubscribe(mid)
	b.EmitPost(ctx, folderDelete("f1"))
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestBus_ContextCancellationUnsubscribes(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	calls := 0
	b.OnPost(ctx, Filter{}, func(context.Context, Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	cancel()

	assert.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.post) == 0
	}, time.Second, 10*time.Millisecond)

	b.EmitPost(context.Background(), folderDelete("f1"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestBus_CloseDropsObservers(t *testing.T) {
	b := NewBus(nil)
	ctx := context.Background()

	b.OnPre(ctx, Filter{}, func(_ context.Context, e *PreEvent) { e.Cancel("no") })
	b.Close()

	assert.False(t, b.EmitPre(ctx, folderDelete("f1")).Cancelled())
	assert.Empty(t, b.OnPre(ctx, Filter{}, func(context.Context, *PreEvent) {}))
	assert.Empty(t, b.OnPost(ctx, Filter{}, func(context.Context, Event) error { return nil }))
}

func TestBus_ConcurrentRegistrationAndDispatch(t *testing.T) {
	b := NewBus(nil)
	defer b.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := b.OnPre(ctx, Filter{Kind: KindFolder}, func(context.Context, *PreEvent) {})
			b.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			b.EmitPre(ctx, folderDelete("f1"))
			b.EmitPost(ctx, folderDelete("f1"))
		}()
	}
	wg.Wait()
}
