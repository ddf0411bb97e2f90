package store

import (
	"slices"

	"github.com/perpetuaapp/perpetua-client/internal/domain"
)

// ViewKey names one logical ordered listing of shelf IDs.
type ViewKey string

// PersonalView is the user's own shelves in their chosen manual order.
func PersonalView(p domain.Principal) ViewKey {
	return ViewKey("personal:" + string(p))
}

// UserView is another user's shelves as seen by the viewer.
func UserView(p domain.Principal) ViewKey {
	return ViewKey("user:" + string(p))
}

// TagView lists shelves carrying a tag.
func TagView(tag string) ViewKey {
	return ViewKey("tag:" + tag)
}

// Feed views.
const (
	RecentView    ViewKey = "feed:recent"
	RandomView    ViewKey = "feed:random"
	StorylineView ViewKey = "feed:storyline"
)

// OrderMode selects how SetOrderForView merges a page of IDs.
type OrderMode int

const (
	// Replace overwrites the view's list. Used for the first page of
	// any paginated query.
	Replace OrderMode = iota
	// Append adds only IDs not already present, guarding against
	// duplicates when page boundaries overlap under concurrent inserts.
	Append
)

// SetOrderForView stores one page of IDs for a view.
func (s *Store) SetOrderForView(view ViewKey, ids []string, mode OrderMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case Replace:
		s.views[view] = slices.Clone(ids)
	case Append:
		existing := s.views[view]
		seen := make(map[string]bool, len(existing))
		for _, id := range existing {
			seen[id] = true
		}
		merged := slices.Clone(existing)
		for _, id := range ids {
			if !seen[id] {
				merged = append(merged, id)
				seen[id] = true
			}
		}
		s.views[view] = merged
	}
	s.bump(SectionViews)
}

// OrderFor returns the current ID list of a view. The returned slice is
// owned by the store; callers must not mutate it.
func (s *Store) OrderFor(view ViewKey) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views[view]
}

// UnshiftIntoView places an ID at the front of a view's list, removing
// any prior occurrence. Used when a freshly created shelf should appear
// first in its owner's listing.
func (s *Store) UnshiftIntoView(view ViewKey, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.views[view]
	merged := make([]string, 0, len(existing)+1)
	merged = append(merged, id)
	for _, other := range existing {
		if other != id {
			merged = append(merged, other)
		}
	}
	s.views[view] = merged
	s.bump(SectionViews)
}
