package service

import (
	"context"
	"log/slog"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	"github.com/perpetuaapp/perpetua-client/internal/store"
)

// FeedService loads the public discovery feeds into the store.
type FeedService struct {
	store  *store.Store
	client api.Client
	logger *slog.Logger
}

// NewFeedService creates a feed service.
func NewFeedService(st *store.Store, client api.Client, logger *slog.Logger) *FeedService {
	return &FeedService{store: st, client: client, logger: logger}
}

// LoadRecentShelves loads one page of the recency feed. The returned
// cursor fetches the next page; empty means exhausted.
func (f *FeedService) LoadRecentShelves(ctx context.Context, cursor string, limit int) (string, error) {
	return f.loadCursorFeed(ctx, store.OpFeed, "recent", store.RecentView, cursor, limit,
		func(ctx context.Context, cursor string, limit int) (api.FeedPage, error) {
			return f.client.GetRecentShelves(ctx, cursor, limit)
		})
}

// LoadRandomFeed loads the hourly shuffled feed. The whole view is
// replaced each time; the backend rotates the shuffle on the hour.
func (f *FeedService) LoadRandomFeed(ctx context.Context, limit int) error {
	return run(f.store, store.OpFeed, "random", func() error {
		shelves, err := f.client.GetShuffledByHourFeed(ctx, normalizeLimit(limit))
		if err != nil {
			return err
		}
		ids := f.upsertAll(shelves)
		f.store.SetOrderForView(store.RandomView, ids, store.Replace)
		return nil
	})
}

// LoadStorylineFeed loads one page of shelves from followed users.
func (f *FeedService) LoadStorylineFeed(ctx context.Context, cursor string, limit int) (string, error) {
	return f.loadCursorFeed(ctx, store.OpFeed, "storyline", store.StorylineView, cursor, limit,
		func(ctx context.Context, cursor string, limit int) (api.FeedPage, error) {
			return f.client.GetStorylineFeed(ctx, cursor, limit)
		})
}

func (f *FeedService) loadCursorFeed(
	ctx context.Context,
	family store.OpFamily,
	key string,
	view store.ViewKey,
	cursor string,
	limit int,
	fetch func(context.Context, string, int) (api.FeedPage, error),
) (string, error) {
	var next string
	err := run(f.store, family, key, func() error {
		page, err := fetch(ctx, cursor, normalizeLimit(limit))
		if err != nil {
			return err
		}

		ids := f.upsertAll(page.Items)
		mode := store.Replace
		if cursor != "" {
			mode = store.Append
		}
		f.store.SetOrderForView(view, ids, mode)
		next = page.NextCursor
		return nil
	})
	return next, err
}

func (f *FeedService) upsertAll(shelves []domain.WireShelf) []string {
	ids := make([]string, 0, len(shelves))
	for _, wire := range shelves {
		f.store.UpsertShelf(wire)
		ids = append(ids, wire.ShelfID)
	}
	return ids
}
