// Package apitest provides an in-process Perpetua backend double. It
// speaks the same POST /rpc/{op} envelope protocol as the production
// canister, keeps all state in memory, and implements enough semantics
// (balances, circular-reference checks, public editing, cursor
// pagination) to exercise every client pipeline end to end.
package apitest

import (
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/id"
)

const (
	// DefaultBalance is the starting balance of every principal.
	DefaultBalance uint64 = 1000
	// StoreShelfCost is charged per created shelf. Tests lower a
	// principal's balance below it to exercise the rejection path.
	StoreShelfCost uint64 = 250

	// positionGap spaces item positions so insertions between neighbors
	// bisect instead of rewriting the whole list.
	positionGap = 1024.0

	defaultPageLimit = 20
	maxPageLimit     = 100
)

type followState struct {
	tags  []string
	users []string
}

// Backend is the in-memory backend double. Safe for concurrent use.
type Backend struct {
	mu           sync.Mutex
	shelves      map[string]*domain.WireShelf
	profileOrder map[string][]string
	follows      map[string]*followState
	balances     map[string]uint64
	nextItemID   map[string]uint32

	now    func() time.Time
	router *chi.Mux
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock substitutes the time source, for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// New builds a backend double with an empty store.
func New(opts ...Option) *Backend {
	b := &Backend{
		shelves:      make(map[string]*domain.WireShelf),
		profileOrder: make(map[string][]string),
		follows:      make(map[string]*followState),
		balances:     make(map[string]uint64),
		nextItemID:   make(map[string]uint32),
		now:          time.Now,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Perpetua-Principal"},
	}))
	r.Post("/rpc/{op}", b.handleRPC)
	b.router = r

	return b
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// SetBalance overrides a principal's balance.
func (b *Backend) SetBalance(principal string, balance uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[principal] = balance
}

// Balance reports a principal's current balance.
func (b *Backend) Balance(principal string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceLocked(principal)
}

// ShelfCount reports the number of stored shelves.
func (b *Backend) ShelfCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.shelves)
}

// Seed installs a wire shelf directly, bypassing balance accounting.
// The shelf is appended to its owner's profile order.
func (b *Backend) Seed(shelf domain.WireShelf) {
	b.mu.Lock()
	defer b.mu.Unlock()

	copied := shelf
	b.shelves[shelf.ShelfID] = &copied
	owner := shelf.Owner.Principal
	b.profileOrder[owner] = append(b.profileOrder[owner], shelf.ShelfID)

	var maxID uint32
	for _, item := range shelf.Items {
		if item.ID > maxID {
			maxID = item.ID
		}
	}
	b.nextItemID[shelf.ShelfID] = maxID + 1
}

func (b *Backend) balanceLocked(principal string) uint64 {
	if bal, ok := b.balances[principal]; ok {
		return bal
	}
	return DefaultBalance
}

func (b *Backend) newShelfID() string {
	return id.MustGenerate("shelf")
}

// rpcHandler consumes the decoded request body and returns either an Ok
// payload or an error string for the Err arm.
type rpcHandler func(principal string, body []byte) (any, string)

func (b *Backend) handleRPC(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	principal := r.Header.Get("X-Perpetua-Principal")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	handler, ok := b.handlers()[op]
	if !ok {
		b.writeErr(w, "not found: unknown operation "+op)
		return
	}

	b.logger.Debug("rpc", "op", op, "principal", principal)

	payload, errMsg := handler(principal, body)
	if errMsg != "" {
		b.writeErr(w, errMsg)
		return
	}
	b.writeOk(w, payload)
}

func (b *Backend) handlers() map[string]rpcHandler {
	return map[string]rpcHandler{
		"get_user_shelves":           b.handleGetUserShelves,
		"get_shelf":                  b.handleGetShelf,
		"get_recent_shelves":         b.handleGetRecentShelves,
		"store_shelf":                b.handleStoreShelf,
		"update_shelf_metadata":      b.handleUpdateShelfMetadata,
		"add_item_to_shelf":          b.handleAddItemToShelf,
		"remove_item_from_shelf":     b.handleRemoveItemFromShelf,
		"set_item_order":             b.handleSetItemOrder,
		"reorder_profile_shelf":      b.handleReorderProfileShelf,
		"is_shelf_public":            b.handleIsShelfPublic,
		"toggle_shelf_public_access": b.handleTogglePublicAccess,
		"follow_tag":                 b.handleFollowTag,
		"unfollow_tag":               b.handleUnfollowTag,
		"follow_user":                b.handleFollowUser,
		"unfollow_user":              b.handleUnfollowUser,
		"get_my_followed_tags":       b.handleGetMyFollowedTags,
		"get_my_followed_users":      b.handleGetMyFollowedUsers,
		"get_popular_tags":           b.handleGetPopularTags,
		"get_shelves_by_tag":         b.handleGetShelvesByTag,
		"get_tag_shelf_count":        b.handleGetTagShelfCount,
		"get_tags_with_prefix":       b.handleGetTagsWithPrefix,
		"get_shuffled_by_hour_feed":  b.handleGetShuffledByHourFeed,
		"get_storyline_feed":         b.handleGetStorylineFeed,
	}
}

func (b *Backend) writeOk(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, struct {
		Ok any `json:"Ok"`
	}{payload}); err != nil {
		b.logger.Error("write Ok envelope", "error", err)
	}
}

func (b *Backend) writeErr(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, struct {
		Err string `json:"Err"`
	}{msg}); err != nil {
		b.logger.Error("write Err envelope", "error", err)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
