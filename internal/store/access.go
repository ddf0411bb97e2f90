package store

import "slices"

// SetPublicAccess records the result of an explicit check-access query.
// Overrides beat the shelf's own public_editing field.
func (s *Store) SetPublicAccess(shelfID string, public bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.publicAccess[shelfID]; ok && current == public {
		return
	}
	s.publicAccess[shelfID] = public
	s.bump(SectionAccess)
}

// PublicAccess returns the override for a shelf, if one was fetched.
func (s *Store) PublicAccess(shelfID string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	public, ok := s.publicAccess[shelfID]
	return public, ok
}

// ReplaceFollowedTags replaces the full followed-tag set. The client
// always refetches the authoritative list after a follow mutation
// rather than reconciling deltas locally, so replacement is the only
// write path. Duplicates are dropped, first occurrence wins.
func (s *Store) ReplaceFollowedTags(tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followedTags = dedupe(tags)
	s.bump(SectionFollows)
}

// ReplaceFollowedUsers replaces the full followed-user set.
func (s *Store) ReplaceFollowedUsers(principals []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followedUsers = dedupe(principals)
	s.bump(SectionFollows)
}

// FollowedTags returns the followed-tag set. Store-owned; do not mutate.
func (s *Store) FollowedTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followedTags
}

// FollowedUsers returns the followed-user set. Store-owned; do not mutate.
func (s *Store) FollowedUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followedUsers
}

// IsFollowingTag reports whether the tag is in the followed set.
func (s *Store) IsFollowingTag(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.followedTags, tag)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}
