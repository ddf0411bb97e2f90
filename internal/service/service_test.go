package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/cache"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/store"
	"github.com/perpetuaapp/perpetua-client/internal/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient implements api.Client with overridable behavior per op.
// Unset ops fail loudly so tests only exercise what they declare.
type fakeClient struct {
	getUserShelves        func(ctx context.Context, principal domain.Principal, offset, limit int) (api.ShelvesPage, error)
	getShelf              func(ctx context.Context, shelfID string) (domain.WireShelf, error)
	getRecentShelves      func(ctx context.Context, cursor string, limit int) (api.FeedPage, error)
	storeShelf            func(ctx context.Context, title string, description *string, items []domain.ItemContent, tags []string) (string, error)
	updateShelfMetadata   func(ctx context.Context, shelfID string, title, description *string) error
	addItemToShelf        func(ctx context.Context, shelfID string, item api.NewItem) error
	removeItemFromShelf   func(ctx context.Context, shelfID string, itemID uint32) error
	setItemOrder          func(ctx context.Context, shelfID string, orderedItemIDs []uint32) error
	reorderProfileShelf   func(ctx context.Context, shelfID string, referenceShelfID *string, before bool) error
	isShelfPublic         func(ctx context.Context, shelfID string) (bool, error)
	togglePublicAccess    func(ctx context.Context, shelfID string, public bool) error
	followTag             func(ctx context.Context, tag string) error
	unfollowTag           func(ctx context.Context, tag string) error
	followUser            func(ctx context.Context, principal domain.Principal) error
	unfollowUser          func(ctx context.Context, principal domain.Principal) error
	getMyFollowedTags     func(ctx context.Context) ([]string, error)
	getMyFollowedUsers    func(ctx context.Context) ([]string, error)
	getPopularTags        func(ctx context.Context, cursor string, limit int) (api.TagsPage, error)
	getShelvesByTag       func(ctx context.Context, tag, cursor string, limit int) (api.FeedPage, error)
	getTagShelfCount      func(ctx context.Context, tag string) (uint64, error)
	getTagsWithPrefix     func(ctx context.Context, prefix, cursor string, limit int) (api.TagsPage, error)
	getShuffledByHourFeed func(ctx context.Context, limit int) ([]domain.WireShelf, error)
	getStorylineFeed      func(ctx context.Context, cursor string, limit int) (api.FeedPage, error)
}

var _ api.Client = (*fakeClient)(nil)

func unset[T any](op string) (T, error) {
	var zero T
	return zero, fmt.Errorf("fakeClient: %s not set", op)
}

func (f *fakeClient) GetUserShelves(ctx context.Context, p domain.Principal, offset, limit int) (api.ShelvesPage, error) {
	if f.getUserShelves == nil {
		return unset[api.ShelvesPage]("GetUserShelves")
	}
	return f.getUserShelves(ctx, p, offset, limit)
}

func (f *fakeClient) GetShelf(ctx context.Context, shelfID string) (domain.WireShelf, error) {
	if f.getShelf == nil {
		return unset[domain.WireShelf]("GetShelf")
	}
	return f.getShelf(ctx, shelfID)
}

func (f *fakeClient) GetRecentShelves(ctx context.Context, cursor string, limit int) (api.FeedPage, error) {
	if f.getRecentShelves == nil {
		return unset[api.FeedPage]("GetRecentShelves")
	}
	return f.getRecentShelves(ctx, cursor, limit)
}

func (f *fakeClient) StoreShelf(ctx context.Context, title string, description *string, items []domain.ItemContent, tags []string) (string, error) {
	if f.storeShelf == nil {
		return unset[string]("StoreShelf")
	}
	return f.storeShelf(ctx, title, description, items, tags)
}

func (f *fakeClient) UpdateShelfMetadata(ctx context.Context, shelfID string, title, description *string) error {
	if f.updateShelfMetadata == nil {
		_, err := unset[struct{}]("UpdateShelfMetadata")
		return err
	}
	return f.updateShelfMetadata(ctx, shelfID, title, description)
}

func (f *fakeClient) AddItemToShelf(ctx context.Context, shelfID string, item api.NewItem) error {
	if f.addItemToShelf == nil {
		_, err := unset[struct{}]("AddItemToShelf")
		return err
	}
	return f.addItemToShelf(ctx, shelfID, item)
}

func (f *fakeClient) RemoveItemFromShelf(ctx context.Context, shelfID string, itemID uint32) error {
	if f.removeItemFromShelf == nil {
		_, err := unset[struct{}]("RemoveItemFromShelf")
		return err
	}
	return f.removeItemFromShelf(ctx, shelfID, itemID)
}

func (f *fakeClient) SetItemOrder(ctx context.Context, shelfID string, orderedItemIDs []uint32) error {
	if f.setItemOrder == nil {
		_, err := unset[struct{}]("SetItemOrder")
		return err
	}
	return f.setItemOrder(ctx, shelfID, orderedItemIDs)
}

func (f *fakeClient) ReorderProfileShelf(ctx context.Context, shelfID string, referenceShelfID *string, before bool) error {
	if f.reorderProfileShelf == nil {
		_, err := unset[struct{}]("ReorderProfileShelf")
		return err
	}
	return f.reorderProfileShelf(ctx, shelfID, referenceShelfID, before)
}

func (f *fakeClient) IsShelfPublic(ctx context.Context, shelfID string) (bool, error) {
	if f.isShelfPublic == nil {
		return unset[bool]("IsShelfPublic")
	}
	return f.isShelfPublic(ctx, shelfID)
}

func (f *fakeClient) ToggleShelfPublicAccess(ctx context.Context, shelfID string, public bool) error {
	if f.togglePublicAccess == nil {
		_, err := unset[struct{}]("ToggleShelfPublicAccess")
		return err
	}
	return f.togglePublicAccess(ctx, shelfID, public)
}

func (f *fakeClient) FollowTag(ctx context.Context, tag string) error {
	if f.followTag == nil {
		_, err := unset[struct{}]("FollowTag")
		return err
	}
	return f.followTag(ctx, tag)
}

func (f *fakeClient) UnfollowTag(ctx context.Context, tag string) error {
	if f.unfollowTag == nil {
		_, err := unset[struct{}]("UnfollowTag")
		return err
	}
	return f.unfollowTag(ctx, tag)
}

func (f *fakeClient) FollowUser(ctx context.Context, principal domain.Principal) error {
	if f.followUser == nil {
		_, err := unset[struct{}]("FollowUser")
		return err
	}
	return f.followUser(ctx, principal)
}

func (f *fakeClient) UnfollowUser(ctx context.Context, principal domain.Principal) error {
	if f.unfollowUser == nil {
		_, err := unset[struct{}]("UnfollowUser")
		return err
	}
	return f.unfollowUser(ctx, principal)
}

func (f *fakeClient) GetMyFollowedTags(ctx context.Context) ([]string, error) {
	if f.getMyFollowedTags == nil {
		return unset[[]string]("GetMyFollowedTags")
	}
	return f.getMyFollowedTags(ctx)
}

func (f *fakeClient) GetMyFollowedUsers(ctx context.Context) ([]string, error) {
	if f.getMyFollowedUsers == nil {
		return unset[[]string]("GetMyFollowedUsers")
	}
	return f.getMyFollowedUsers(ctx)
}

func (f *fakeClient) GetPopularTags(ctx context.Context, cursor string, limit int) (api.TagsPage, error) {
	if f.getPopularTags == nil {
		return unset[api.TagsPage]("GetPopularTags")
	}
	return f.getPopularTags(ctx, cursor, limit)
}

func (f *fakeClient) GetShelvesByTag(ctx context.Context, tag, cursor string, limit int) (api.FeedPage, error) {
	if f.getShelvesByTag == nil {
		return unset[api.FeedPage]("GetShelvesByTag")
	}
	return f.getShelvesByTag(ctx, tag, cursor, limit)
}

func (f *fakeClient) GetTagShelfCount(ctx context.Context, tag string) (uint64, error) {
	if f.getTagShelfCount == nil {
		return unset[uint64]("GetTagShelfCount")
	}
	return f.getTagShelfCount(ctx, tag)
}

func (f *fakeClient) GetTagsWithPrefix(ctx context.Context, prefix, cursor string, limit int) (api.TagsPage, error) {
	if f.getTagsWithPrefix == nil {
		return unset[api.TagsPage]("GetTagsWithPrefix")
	}
	return f.getTagsWithPrefix(ctx, prefix, cursor, limit)
}

func (f *fakeClient) GetShuffledByHourFeed(ctx context.Context, limit int) ([]domain.WireShelf, error) {
	if f.getShuffledByHourFeed == nil {
		return unset[[]domain.WireShelf]("GetShuffledByHourFeed")
	}
	return f.getShuffledByHourFeed(ctx, limit)
}

func (f *fakeClient) GetStorylineFeed(ctx context.Context, cursor string, limit int) (api.FeedPage, error) {
	if f.getStorylineFeed == nil {
		return unset[api.FeedPage]("GetStorylineFeed")
	}
	return f.getStorylineFeed(ctx, cursor, limit)
}

func (f *fakeClient) Close() {}

// fixture bundles the state layer around a fake client.
type fixture struct {
	store  *store.Store
	cache  *cache.Cache
	client *fakeClient
	shelf  *ShelfService
	tags   *TagService
	follow *FollowService
	feed   *FeedService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := discardLogger()
	st := store.New(log)
	c := cache.New(cache.WithLogger(log))
	t.Cleanup(c.Stop)

	client := &fakeClient{}
	return &fixture{
		store:  st,
		cache:  c,
		client: client,
		shelf:  NewShelfService(st, c, client, validation.New(), log),
		tags:   NewTagService(st, c, client, log),
		follow: NewFollowService(st, client, log),
		feed:   NewFeedService(st, client, log),
	}
}

func (fx *fixture) signIn(t *testing.T, principal string) {
	t.Helper()
	session := NewSessionService(fx.store, fx.cache, discardLogger())
	require.NoError(t, session.SignIn(domain.Principal(principal)))
}

func wireShelf(id, owner, title string, createdAt uint64) domain.WireShelf {
	return domain.WireShelf{
		ShelfID:       id,
		Owner:         domain.WirePrincipal{Principal: owner},
		Title:         title,
		Items:         []domain.Item{},
		ItemPositions: []domain.ItemPosition{},
		Tags:          []string{},
		AppearsIn:     []string{},
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
}
