package store

// OpFamily groups related operations for loading/error bookkeeping.
// Each (family, key) pair carries its own flags, so concurrent
// operations on different shelves never block or clobber each other.
type OpFamily string

const (
	OpLoadShelves  OpFamily = "load_shelves"
	OpLoadShelf    OpFamily = "load_shelf"
	OpCreateShelf  OpFamily = "create_shelf"
	OpUpdateShelf  OpFamily = "update_shelf"
	OpAddItem      OpFamily = "add_item"
	OpRemoveItem   OpFamily = "remove_item"
	OpSetItemOrder OpFamily = "set_item_order"
	OpReorderShelf OpFamily = "reorder_shelf"
	OpCheckAccess  OpFamily = "check_access"
	OpToggleAccess OpFamily = "toggle_access"
	OpFollow       OpFamily = "follow"
	OpTags         OpFamily = "tags"
	OpFeed         OpFamily = "feed"
)

type opKey struct {
	family OpFamily
	key    string
}

// BeginOp marks an operation pending and clears the family's last error
// for that key (errors are cleared at the start of the next attempt).
func (s *Store) BeginOp(family OpFamily, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := opKey{family: family, key: key}
	s.loading[k] = true
	delete(s.lastError, k)
	s.bump(SectionStatus)
}

// FinishOp marks an operation settled. A non-empty errMsg records the
// rejection; empty means fulfilled.
func (s *Store) FinishOp(family OpFamily, key, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := opKey{family: family, key: key}
	delete(s.loading, k)
	if errMsg != "" {
		s.lastError[k] = errMsg
	}
	s.bump(SectionStatus)
}

// Loading reports whether an operation is in flight for (family, key).
func (s *Store) Loading(family OpFamily, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[opKey{family: family, key: key}]
}

// LastError returns the stored error message for (family, key), empty
// if the last attempt succeeded or none ran.
func (s *Store) LastError(family OpFamily, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError[opKey{family: family, key: key}]
}
