// ABOUTME: Manager is the entry point to the holder store
// ABOUTME: Resolves holders by identity and shares one live Holder per identity

package waypoints

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wordmann/waypoints/internal/events"
	"github.com/wordmann/waypoints/internal/store"
)

// Options configures a Manager.
type Options struct {
	// Bus receives lifecycle events. A private bus is created when nil.
	Bus *events.Bus
	// FolderDeletePolicy decides what happens to the waypoints of a deleted
	// folder. Defaults to store.CascadeDetach.
	FolderDeletePolicy store.CascadePolicy
	Logger             *slog.Logger
}

// Manager resolves holders and entities. It is safe for concurrent use.
type Manager struct {
	store   store.Store
	bus     *events.Bus
	ownsBus bool
	policy  store.CascadePolicy
	logger  *slog.Logger

	mu      sync.Mutex
	holders map[string]*Holder // holder ID -> live holder
	byKey   map[string]*Holder // type + owner key -> live holder
	closed  bool
}

// NewManager creates a Manager over st. The caller keeps ownership of st.
func NewManager(st store.Store, opts Options) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidArgument)
	}

	policy := opts.FolderDeletePolicy
	if policy == "" {
		policy = store.CascadeDetach
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: folder delete policy %q", ErrInvalidArgument, policy)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		store:   st,
		bus:     opts.Bus,
		policy:  policy,
		logger:  logger.With("component", "waypoints"),
		holders: make(map[string]*Holder),
		byKey:   make(map[string]*Holder),
	}
	if m.bus == nil {
		m.bus = events.NewBus(logger)
		m.ownsBus = true
	}
	return m, nil
}

// Bus returns the event bus observers register with.
func (m *Manager) Bus() *events.Bus {
	return m.bus
}

// FolderDeletePolicy returns the cascade policy applied by Folder.Delete.
func (m *Manager) FolderDeletePolicy() store.CascadePolicy {
	return m.policy
}

// Holder returns the live holder for (holderType, ownerKey), creating it on
// first use. Individual holders need an owner key; the global holder has none.
func (m *Manager) Holder(ctx context.Context, holderType HolderType, ownerKey string) *Task[*Holder] {
	ownerKey = strings.TrimSpace(ownerKey)
	switch {
	case !holderType.Valid():
		return failed[*Holder](invalidArgument("unknown holder type %q", holderType))
	case holderType == Individual && ownerKey == "":
		return failed[*Holder](invalidArgument("individual holder needs an owner key"))
	case holderType == Global:
		ownerKey = ""
	}

	key := string(holderType) + "\x00" + ownerKey
	return Go(ctx, func(ctx context.Context) (*Holder, error) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if h, ok := m.byKey[key]; ok {
			m.mu.Unlock()
			return h, nil
		}
		m.mu.Unlock()

		rec, err := m.store.EnsureHolder(ctx, string(holderType), ownerKey)
		if err != nil {
			return nil, classify(ctx, "resolve holder", err)
		}
		return m.adopt(rec), nil
	})
}

// Global returns the global holder.
func (m *Manager) Global(ctx context.Context) *Task[*Holder] {
	return m.Holder(ctx, Global, "")
}

// Group returns the permission-gated group holder named key. The empty key
// is the default group.
func (m *Manager) Group(ctx context.Context, key string) *Task[*Holder] {
	return m.Holder(ctx, Group, key)
}

// Individual returns the holder owned by ownerKey.
func (m *Manager) Individual(ctx context.Context, ownerKey string) *Task[*Holder] {
	return m.Holder(ctx, Individual, ownerKey)
}

// Holders lists every known holder.
func (m *Manager) Holders(ctx context.Context) *Task[[]*Holder] {
	return Go(ctx, func(ctx context.Context) ([]*Holder, error) {
		recs, err := m.store.ListHolders(ctx)
		if err != nil {
			return nil, classify(ctx, "list holders", err)
		}
		holders := make([]*Holder, 0, len(recs))
		for _, rec := range recs {
			holders = append(holders, m.adopt(rec))
		}
		return holders, nil
	})
}

// WaypointByID looks up a waypoint in any holder.
func (m *Manager) WaypointByID(ctx context.Context, id string) *Task[*Waypoint] {
	return Go(ctx, func(ctx context.Context) (*Waypoint, error) {
		rec, err := m.store.GetWaypoint(ctx, id)
		if err != nil {
			return nil, classify(ctx, "get waypoint", err)
		}
		h, err := m.holderByID(ctx, rec.HolderID)
		if err != nil {
			return nil, err
		}
		return newWaypoint(h, rec), nil
	})
}

// FolderByID looks up a folder in any holder.
func (m *Manager) FolderByID(ctx context.Context, id string) *Task[*Folder] {
	return Go(ctx, func(ctx context.Context) (*Folder, error) {
		rec, err := m.store.GetFolder(ctx, id)
		if err != nil {
			return nil, classify(ctx, "get folder", err)
		}
		h, err := m.holderByID(ctx, rec.HolderID)
		if err != nil {
			return nil, err
		}
		return newFolder(h, rec), nil
	})
}

// Close detaches the manager. Later holder lookups fail with ErrClosed.
// A bus created by the manager is closed too; an injected bus is not.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.ownsBus {
		m.bus.Close()
	}
	return nil
}

func (m *Manager) holderByID(ctx context.Context, id string) (*Holder, error) {
	m.mu.Lock()
	h, ok := m.holders[id]
	m.mu.Unlock()
	if ok {
		return h, nil
	}

	rec, err := m.store.GetHolder(ctx, id)
	if err != nil {
		return nil, classify(ctx, "get holder", err)
	}
	return m.adopt(rec), nil
}

// adopt returns the cached holder for rec, caching it on first sight so
// every caller shares the same write lock.
func (m *Manager) adopt(rec *store.Holder) *Holder {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.holders[rec.ID]; ok {
		return h
	}
	h := newHolder(m, rec)
	m.holders[rec.ID] = h
	m.byKey[rec.Type+"\x00"+rec.OwnerKey] = h
	m.logger.Debug("holder loaded", "holder_id", rec.ID, "type", rec.Type, "owner_key", rec.OwnerKey)
	return h
}
