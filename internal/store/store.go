// Package store holds the single authoritative in-memory copy of every
// shelf the client has seen, plus ordered ID lists for each logical view.
//
// Entities are stored once, keyed by shelf_id; views hold only IDs and
// dereference through the entity map, so no two divergent copies of a
// shelf can exist in memory. Writes bump per-section version counters
// that the selector layer uses for memoization.
package store

import (
	"log/slog"
	"sync"

	"github.com/perpetuaapp/perpetua-client/internal/domain"
)

// Section identifies an independently versioned slice of store state.
// Selectors declare which sections they read and re-derive only when
// one of those sections changes.
type Section int

const (
	SectionEntities Section = iota
	SectionViews
	SectionItemOrders
	SectionAccess
	SectionFollows
	SectionSession
	SectionStatus

	numSections
)

// Store is the normalized entity store. All methods are safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger

	versions [numSections]uint64

	// Entities: at most one record per shelf_id. The stored *Shelf is
	// treated as immutable; an upsert replaces the pointer wholesale.
	shelves map[string]*domain.Shelf

	// Ordered ID lists per logical view.
	views map[ViewKey][]string

	// View-only item order overrides, so an in-flight optimistic
	// reorder shows immediately without a refetch.
	itemOrders map[string][]uint32

	// Dynamically fetched public-access overrides; these beat the
	// shelf's own public_editing field.
	publicAccess map[string]bool

	followedTags  []string
	followedUsers []string

	session domain.Principal

	loading   map[opKey]bool
	lastError map[opKey]string
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		logger:       logger,
		shelves:      make(map[string]*domain.Shelf),
		views:        make(map[ViewKey][]string),
		itemOrders:   make(map[string][]uint32),
		publicAccess: make(map[string]bool),
		loading:      make(map[opKey]bool),
		lastError:    make(map[opKey]string),
	}
}

// Version returns the current version of a section. Any write to the
// section increments it.
func (s *Store) Version(section Section) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[section]
}

// Versions returns the versions of several sections in order.
func (s *Store) Versions(sections ...Section) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, len(sections))
	for i, section := range sections {
		out[i] = s.versions[section]
	}
	return out
}

// bump must be called with s.mu held for writing.
func (s *Store) bump(section Section) {
	s.versions[section]++
}

// SetSession records the signed-in principal.
func (s *Store) SetSession(p domain.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == p {
		return
	}
	s.session = p
	s.bump(SectionSession)
}

// Session returns the current session principal; Anonymous if none.
func (s *Store) Session() domain.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}
