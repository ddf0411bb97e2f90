package service

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/api/apitest"
	"github.com/perpetuaapp/perpetua-client/internal/cache"
	"github.com/perpetuaapp/perpetua-client/internal/config"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
	"github.com/perpetuaapp/perpetua-client/internal/reorder"
	"github.com/perpetuaapp/perpetua-client/internal/selector"
	"github.com/perpetuaapp/perpetua-client/internal/store"
	"github.com/perpetuaapp/perpetua-client/internal/validation"
)

// e2e wires the full client stack against the in-process backend.
type e2e struct {
	backend *apitest.Backend
	store   *store.Store
	shelf   *ShelfService
	tags    *TagService
	follow  *FollowService
	feed    *FeedService
}

func newE2E(t *testing.T, principal string) *e2e {
	t.Helper()

	log := discardLogger()
	backend := apitest.New()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := api.NewHTTPClient(config.BackendConfig{
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
		RateRPS:        1000,
		RateBurst:      1000,
	}, domain.Principal(principal), log)
	t.Cleanup(client.Close)

	st := store.New(log)
	c := cache.New(cache.WithLogger(log))
	t.Cleanup(c.Stop)

	st.SetSession(domain.Principal(principal))

	return &e2e{
		backend: backend,
		store:   st,
		shelf:   NewShelfService(st, c, client, validation.New(), log),
		tags:    NewTagService(st, c, client, log),
		follow:  NewFollowService(st, client, log),
		feed:    NewFeedService(st, client, log),
	}
}

func TestE2ECreateShelfAndLoad(t *testing.T) {
	env := newE2E(t, "alice")
	ctx := context.Background()

	id, err := env.shelf.CreateShelf(ctx, "Reading list", nil,
		[]domain.ItemContent{domain.MarkdownContent{Text: "# Dune"}}, []string{"fiction"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// The synthesized record is visible immediately.
	local, ok := env.store.Shelf(id)
	require.True(t, ok)
	assert.Equal(t, "Reading list", local.Title)

	// A full reload converges on the backend's copy.
	total, err := env.shelf.LoadShelves(ctx, "alice", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	authoritative, ok := env.store.Shelf(id)
	require.True(t, ok)
	assert.Equal(t, domain.Principal("alice"), authoritative.Owner)
	require.Len(t, authoritative.Items, 1)
	assert.Equal(t, []string{id}, env.store.OrderFor(store.PersonalView("alice")))
}

func TestE2EInsufficientBalance(t *testing.T) {
	env := newE2E(t, "alice")
	env.backend.SetBalance("alice", apitest.StoreShelfCost-1)

	_, err := env.shelf.CreateShelf(context.Background(), "Too poor", nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientBalance)
	assert.Equal(t, "Not enough balance to complete this action.",
		env.store.LastError(store.OpCreateShelf, "alice"))
}

func TestE2EItemLifecycle(t *testing.T) {
	env := newE2E(t, "alice")
	ctx := context.Background()

	id, err := env.shelf.CreateShelf(ctx, "Notes", nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, env.shelf.AddItem(ctx, id, domain.MarkdownContent{Text: "first"}, nil, false))
	require.NoError(t, env.shelf.AddItem(ctx, id, domain.MarkdownContent{Text: "second"}, nil, false))

	shelf, ok := env.store.Shelf(id)
	require.True(t, ok)
	require.Len(t, shelf.Items, 2)
	ordered := shelf.OrderedItemIDs()
	require.Len(t, ordered, 2)

	// Reverse the order wholesale, then drop the first item.
	require.NoError(t, env.shelf.SetItemOrder(ctx, id, []uint32{ordered[1], ordered[0]}))
	override, ok := env.store.ItemOrder(id)
	require.True(t, ok)
	assert.Equal(t, []uint32{ordered[1], ordered[0]}, override)

	require.NoError(t, env.shelf.RemoveItem(ctx, id, ordered[0]))
	shelf, _ = env.store.Shelf(id)
	assert.Len(t, shelf.Items, 1)
}

func TestE2ECircularNestingRejected(t *testing.T) {
	env := newE2E(t, "alice")
	ctx := context.Background()

	outer, err := env.shelf.CreateShelf(ctx, "Outer", nil, nil, nil)
	require.NoError(t, err)
	inner, err := env.shelf.CreateShelf(ctx, "Inner", nil, nil, nil)
	require.NoError(t, err)

	// Outer contains inner.
	require.NoError(t, env.shelf.AddItem(ctx, outer, domain.ShelfContent{ShelfID: inner}, nil, false))

	// Closing the loop is refused by the backend.
	err = env.shelf.AddItem(ctx, inner, domain.ShelfContent{ShelfID: outer}, nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrCircularReference)
	assert.Equal(t, "A shelf cannot contain itself, directly or through nested shelves.",
		env.store.LastError(store.OpAddItem, inner))

	// Direct self-nesting never leaves the client.
	err = env.shelf.AddItem(ctx, outer, domain.ShelfContent{ShelfID: outer}, nil, false)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestE2EProfileReorderWithTracker(t *testing.T) {
	env := newE2E(t, "alice")
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"A", "B", "C", "D"} {
		id, err := env.shelf.CreateShelf(ctx, title, nil, nil, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// Creation unshifts, so the profile order is D, C, B, A.
	_, err := env.shelf.LoadShelves(ctx, "alice", 0, 10)
	require.NoError(t, err)
	view := store.PersonalView("alice")
	start := env.store.OrderFor(view)
	require.Equal(t, []string{ids[3], ids[2], ids[1], ids[0]}, start)

	// Drag the last shelf to the front and save.
	tracker := reorder.New[string](discardLogger())
	require.NoError(t, tracker.EnterEdit(start))
	require.NoError(t, tracker.DragStart(3))
	require.NoError(t, tracker.Drop(0))
	edited := tracker.Working()

	err = tracker.Save(ctx, func(ctx context.Context, move reorder.Move[string]) error {
		var ref *string
		if move.Reference != "" {
			ref = &move.Reference
		}
		return env.shelf.ReorderProfileShelf(ctx, move.ID, ref, move.Before, edited)
	})
	require.NoError(t, err)
	assert.Equal(t, reorder.PhaseViewing, tracker.Phase())

	// The optimistic order sticks, and a reload agrees with it.
	assert.Equal(t, edited, env.store.OrderFor(view))
	_, err = env.shelf.LoadShelves(ctx, "alice", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, edited, env.store.OrderFor(view))
}

func TestE2EFollowAndDiscovery(t *testing.T) {
	alice := newE2E(t, "alice")
	ctx := context.Background()

	_, err := alice.shelf.CreateShelf(ctx, "Histories", nil, nil, []string{"history"})
	require.NoError(t, err)
	_, err = alice.shelf.CreateShelf(ctx, "Novels", nil, nil, []string{"fiction"})
	require.NoError(t, err)

	// Bob follows the tag and alice herself, wired to the same backend
	// instance through his own client and store.
	srv := httptest.NewServer(alice.backend)
	t.Cleanup(srv.Close)
	log := discardLogger()
	client := api.NewHTTPClient(config.BackendConfig{
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
		RateRPS:        1000,
		RateBurst:      1000,
	}, "bob", log)
	t.Cleanup(client.Close)
	bobStore := store.New(log)
	bobStore.SetSession("bob")
	bobCache := cache.New(cache.WithLogger(log))
	t.Cleanup(bobCache.Stop)
	follow := NewFollowService(bobStore, client, log)
	tags := NewTagService(bobStore, bobCache, client, log)
	feed := NewFeedService(bobStore, client, log)

	require.NoError(t, follow.FollowTag(ctx, "history"))
	require.NoError(t, follow.FollowUser(ctx, "alice"))
	assert.True(t, bobStore.IsFollowingTag("history"))

	next, err := tags.FetchShelvesByTag(ctx, "history", "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, bobStore.OrderFor(store.TagView("history")), 1)

	count, err := tags.FetchTagShelfCount(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Storyline surfaces alice's shelves because bob follows her.
	_, err = feed.LoadStorylineFeed(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, bobStore.OrderFor(store.StorylineView), 2)
}

func TestE2ENonOwnerGainsEditRightsOnPublicShelf(t *testing.T) {
	alice := newE2E(t, "alice")
	ctx := context.Background()

	id, err := alice.shelf.CreateShelf(ctx, "Communal", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, alice.shelf.ToggleShelfPublicAccess(ctx, id, true))

	// Bob connects to the same backend with his own client and store.
	srv := httptest.NewServer(alice.backend)
	t.Cleanup(srv.Close)
	log := discardLogger()
	client := api.NewHTTPClient(config.BackendConfig{
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
		RateRPS:        1000,
		RateBurst:      1000,
	}, "bob", log)
	t.Cleanup(client.Close)
	bobStore := store.New(log)
	bobStore.SetSession("bob")
	bobCache := cache.New(cache.WithLogger(log))
	t.Cleanup(bobCache.Stop)
	shelves := NewShelfService(bobStore, bobCache, client, validation.New(), log)
	selectors := selector.NewRegistry(bobStore)

	// Shelf not loaded yet, access unknown: no edit rights.
	assert.False(t, selectors.CanEdit(id)())

	public, err := shelves.CheckShelfPublicAccess(ctx, id)
	require.NoError(t, err)
	assert.True(t, public)
	assert.True(t, selectors.CanEdit(id)())

	// Public editing lets bob mutate alice's shelf on the backend too.
	err = shelves.AddItem(ctx, id, domain.MarkdownContent{Text: "added by bob"}, nil, false)
	require.NoError(t, err)

	sh, ok := bobStore.Shelf(id)
	require.True(t, ok)
	assert.Len(t, sh.Items, 1)
}

func TestE2EPublicAccessRoundTrip(t *testing.T) {
	env := newE2E(t, "alice")
	ctx := context.Background()

	id, err := env.shelf.CreateShelf(ctx, "Shared", nil, nil, nil)
	require.NoError(t, err)

	public, err := env.shelf.CheckShelfPublicAccess(ctx, id)
	require.NoError(t, err)
	assert.False(t, public)

	require.NoError(t, env.shelf.ToggleShelfPublicAccess(ctx, id, true))

	public, err = env.shelf.CheckShelfPublicAccess(ctx, id)
	require.NoError(t, err)
	assert.True(t, public)
}
