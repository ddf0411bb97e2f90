// Package service implements the async operation pipeline between the
// backend client and the normalized store. Every operation follows the
// same shape: mark the operation loading, call the backend, write
// results into the store and caches on success, and record a single
// user-facing error string on failure. No operation retries on its own.
package service

import (
	"log/slog"
	"time"

	"github.com/perpetuaapp/perpetua-client/internal/cache"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
	"github.com/perpetuaapp/perpetua-client/internal/store"
)

// Cache entry types, used as the second half of cache keys.
const (
	cacheTypeShelfAccess = "shelf_access"
	cacheTypeTagCount    = "tag_count"
)

// DefaultPageSize is used when a caller passes a non-positive limit.
const DefaultPageSize = 20

// run executes one pipeline operation: it flips the loading flag and
// clears the previous error, invokes fn, and records the outcome. The
// stored error is the normalized user-facing message; the returned
// error keeps the full chain for callers that inspect codes.
func run(st *store.Store, family store.OpFamily, key string, fn func() error) error {
	st.BeginOp(family, key)
	err := fn()
	var msg string
	if err != nil {
		msg = domainerrors.UserMessage(err)
	}
	st.FinishOp(family, key, msg)
	return err
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}

// SessionService manages the signed-in principal.
type SessionService struct {
	store  *store.Store
	cache  *cache.Cache
	logger *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(st *store.Store, c *cache.Cache, logger *slog.Logger) *SessionService {
	return &SessionService{store: st, cache: c, logger: logger}
}

// SignIn records the principal of the authenticated user. Cached reads
// scoped to the previous identity are dropped.
func (s *SessionService) SignIn(principal domain.Principal) error {
	if principal.IsAnonymous() {
		return domainerrors.Validation("principal is required")
	}
	previous := s.store.Session()
	if previous == principal {
		return nil
	}
	if !previous.IsAnonymous() {
		s.cache.InvalidateForPrincipal(string(previous))
	}
	s.store.SetSession(principal)
	s.logger.Info("signed in", "principal", principal)
	return nil
}

// SignOut clears the session and all identity-scoped state.
func (s *SessionService) SignOut() {
	previous := s.store.Session()
	if previous.IsAnonymous() {
		return
	}
	s.cache.InvalidateForPrincipal(string(previous))
	s.store.SetSession(domain.Anonymous)
	s.store.ReplaceFollowedTags(nil)
	s.store.ReplaceFollowedUsers(nil)
	s.logger.Info("signed out", "principal", previous)
}

// nowFunc is injectable for deterministic synthesized timestamps.
type nowFunc func() time.Time

func defaultNow() time.Time { return time.Now() }
