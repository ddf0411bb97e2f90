// Package selector computes read views over the entity store without
// duplicating data, memoized for referential stability: consumers that
// diff by reference (to skip re-render) get the identical value back
// while none of a selector's declared store sections have changed.
package selector

import (
	"slices"
	"sync"

	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/store"
)

// DefaultCapacity bounds the number of live parameterized selector
// instances. Parameters are bounded by the shelf IDs and tags actually
// visited in a session, but a long-lived session could still grow
// without a cap, so least-recently-used instances are evicted.
const DefaultCapacity = 256

// Registry builds and caches memoized selectors over one store.
// Calling a factory twice with the same parameter returns the same
// selector instance, which is what keeps memoization stable.
type Registry struct {
	store *store.Store

	mu        sync.Mutex
	selectors map[selectorKey]*registryEntry
	capacity  int
	tick      uint64
}

type selectorKey struct {
	kind  string
	param string
}

type registryEntry struct {
	fn       any
	lastUsed uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity overrides the selector instance cap.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// NewRegistry creates a selector registry over the given store.
func NewRegistry(s *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:     s,
		selectors: make(map[selectorKey]*registryEntry),
		capacity:  DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// memoized caches one derived value together with the store section
// versions it was computed from.
type memoized[T any] struct {
	mu       sync.Mutex
	store    *store.Store
	sections []store.Section
	compute  func() T

	valid    bool
	versions []uint64
	value    T
}

func (m *memoized[T]) get() T {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.store.Versions(m.sections...)
	if m.valid && slices.Equal(current, m.versions) {
		return m.value
	}

	m.value = m.compute()
	m.versions = current
	m.valid = true
	return m.value
}

// getOrCreate returns the cached selector for (kind, param), lazily
// creating and caching it on first use.
func getOrCreate[T any](r *Registry, kind, param string, sections []store.Section, compute func() T) func() T {
	key := selectorKey{kind: kind, param: param}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tick++
	if e, ok := r.selectors[key]; ok {
		e.lastUsed = r.tick
		return e.fn.(func() T)
	}

	m := &memoized[T]{store: r.store, sections: sections, compute: compute}
	fn := m.get

	if len(r.selectors) >= r.capacity {
		r.evictOldestLocked()
	}
	r.selectors[key] = &registryEntry{fn: fn, lastUsed: r.tick}
	return fn
}

// evictOldestLocked drops the least-recently-used entry. Linear scan is
// fine at the configured capacities.
func (r *Registry) evictOldestLocked() {
	var oldest selectorKey
	var oldestTick uint64
	first := true
	for key, e := range r.selectors {
		if first || e.lastUsed < oldestTick {
			oldest = key
			oldestTick = e.lastUsed
			first = false
		}
	}
	if !first {
		delete(r.selectors, oldest)
	}
}

// Len returns the number of live selector instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.selectors)
}

// ShelfByID returns the memoized by-ID lookup selector. A nil result
// means "not yet loaded", never an error.
func (r *Registry) ShelfByID(shelfID string) func() *domain.Shelf {
	return getOrCreate(r, "shelfByID", shelfID,
		[]store.Section{store.SectionEntities},
		func() *domain.Shelf {
			shelf, _ := r.store.Shelf(shelfID)
			return shelf
		})
}

// IsOwner reports whether the stored owner equals the session
// principal. No owner record or no session both yield false.
func (r *Registry) IsOwner(shelfID string) func() bool {
	return getOrCreate(r, "isOwner", shelfID,
		[]store.Section{store.SectionEntities, store.SectionSession},
		func() bool {
			shelf, ok := r.store.Shelf(shelfID)
			if !ok {
				return false
			}
			return shelf.IsOwnedBy(r.store.Session())
		})
}

// IsPublic prefers the dynamically fetched public-access override over
// the shelf's own public_editing field, defaulting to false when
// neither exists.
func (r *Registry) IsPublic(shelfID string) func() bool {
	return getOrCreate(r, "isPublic", shelfID,
		[]store.Section{store.SectionEntities, store.SectionAccess},
		func() bool {
			if public, ok := r.store.PublicAccess(shelfID); ok {
				return public
			}
			if shelf, ok := r.store.Shelf(shelfID); ok {
				return shelf.PublicEditing
			}
			return false
		})
}

// CanEdit is true for the owner or when the shelf is publicly editable.
func (r *Registry) CanEdit(shelfID string) func() bool {
	isOwner := r.IsOwner(shelfID)
	isPublic := r.IsPublic(shelfID)
	return getOrCreate(r, "canEdit", shelfID,
		[]store.Section{store.SectionEntities, store.SectionAccess, store.SectionSession},
		func() bool {
			return isOwner() || isPublic()
		})
}

// ShelvesForUser returns the user's shelves. For the session principal
// the explicit order list drives the result, preserving manual
// reordering; for anyone else the result is their owned shelves sorted
// by created_at descending, since no manual order exists from the
// viewer's perspective. Dangling view IDs (entity not yet fetched) are
// skipped.
func (r *Registry) ShelvesForUser(user domain.Principal) func() []*domain.Shelf {
	return getOrCreate(r, "shelvesForUser", string(user),
		[]store.Section{store.SectionEntities, store.SectionViews, store.SectionSession},
		func() []*domain.Shelf {
			if user == r.store.Session() {
				return r.resolve(r.store.OrderFor(store.PersonalView(user)))
			}

			var owned []*domain.Shelf
			for _, id := range r.store.AllShelfIDs() {
				if shelf, ok := r.store.Shelf(id); ok && shelf.Owner == user {
					owned = append(owned, shelf)
				}
			}
			slices.SortFunc(owned, func(a, b *domain.Shelf) int {
				switch {
				case b.CreatedAt.Before(a.CreatedAt):
					return -1
				case a.CreatedAt.Before(b.CreatedAt):
					return 1
				default:
					return 0
				}
			})
			return owned
		})
}

// ShelvesForTag resolves the tag view's ID list against the entity map.
func (r *Registry) ShelvesForTag(tag string) func() []*domain.Shelf {
	return getOrCreate(r, "shelvesForTag", tag,
		[]store.Section{store.SectionEntities, store.SectionViews},
		func() []*domain.Shelf {
			return r.resolve(r.store.OrderFor(store.TagView(tag)))
		})
}

// ShelvesForView resolves any feed view's ID list against the entity map.
func (r *Registry) ShelvesForView(view store.ViewKey) func() []*domain.Shelf {
	return getOrCreate(r, "shelvesForView", string(view),
		[]store.Section{store.SectionEntities, store.SectionViews},
		func() []*domain.Shelf {
			return r.resolve(r.store.OrderFor(view))
		})
}

// OrderedItems returns a shelf's items in display order, honoring a
// view-only item order override when one is present.
func (r *Registry) OrderedItems(shelfID string) func() []domain.Item {
	return getOrCreate(r, "orderedItems", shelfID,
		[]store.Section{store.SectionEntities, store.SectionItemOrders},
		func() []domain.Item {
			shelf, ok := r.store.Shelf(shelfID)
			if !ok {
				return nil
			}
			override, ok := r.store.ItemOrder(shelfID)
			if !ok {
				return shelf.OrderedItems()
			}
			items := make([]domain.Item, 0, len(override))
			for _, itemID := range override {
				if item, present := shelf.Items[itemID]; present {
					items = append(items, item)
				}
			}
			return items
		})
}

// FollowedTags returns the memoized followed-tag set.
func (r *Registry) FollowedTags() func() []string {
	return getOrCreate(r, "followedTags", "",
		[]store.Section{store.SectionFollows},
		func() []string {
			return r.store.FollowedTags()
		})
}

func (r *Registry) resolve(ids []string) []*domain.Shelf {
	shelves := make([]*domain.Shelf, 0, len(ids))
	for _, id := range ids {
		if shelf, ok := r.store.Shelf(id); ok {
			shelves = append(shelves, shelf)
		}
	}
	return shelves
}
