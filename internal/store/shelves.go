package store

import (
	"slices"

	"github.com/perpetuaapp/perpetua-client/internal/domain"
)

// UpsertShelf normalizes a wire-format shelf and stores it keyed by
// shelf_id. Re-running with the same ID overwrites in place: later
// writes always win, there is no merge, because the backend is the sole
// source of truth and the client never holds two independent edits to
// the same shelf concurrently.
func (s *Store) UpsertShelf(wire domain.WireShelf) {
	normalized := domain.Normalize(wire)
	s.UpsertNormalized(normalized)
}

// UpsertNormalized stores an already-normalized shelf record. Used for
// client-synthesized records (e.g. right after a create, before the
// next full refetch).
func (s *Store) UpsertNormalized(shelf domain.Shelf) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shelves[shelf.ShelfID] = &shelf
	s.bump(SectionEntities)

	s.logger.Debug("shelf upserted",
		"shelf_id", shelf.ShelfID,
		"owner", string(shelf.Owner),
		"item_count", len(shelf.Items),
	)
}

// Shelf returns the stored record for an ID. A missing record means
// "not yet loaded", never an error; views tolerate dangling IDs while
// the entity fetch catches up. The returned pointer must be treated as
// immutable.
func (s *Store) Shelf(id string) (*domain.Shelf, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shelf, ok := s.shelves[id]
	return shelf, ok
}

// ShelfCount returns the number of distinct shelves in the entity map.
func (s *Store) ShelfCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shelves)
}

// AllShelfIDs returns the IDs of every stored shelf, unordered.
func (s *Store) AllShelfIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.shelves))
	for id := range s.shelves {
		ids = append(ids, id)
	}
	return ids
}

// SetItemOrder stores a view-only override of a shelf's item order so an
// optimistic or freshly confirmed reorder is reflected immediately
// without waiting for the shelf to be re-fetched.
func (s *Store) SetItemOrder(shelfID string, orderedItemIDs []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemOrders[shelfID] = slices.Clone(orderedItemIDs)
	s.bump(SectionItemOrders)
}

// ItemOrder returns the override order for a shelf, if any.
func (s *Store) ItemOrder(shelfID string) ([]uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.itemOrders[shelfID]
	return order, ok
}

// ClearItemOrder drops the override, letting the shelf's own positions
// drive display order again (e.g. after a refetch).
func (s *Store) ClearItemOrder(shelfID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.itemOrders[shelfID]; !ok {
		return
	}
	delete(s.itemOrders, shelfID)
	s.bump(SectionItemOrders)
}
