package service

import (
	"context"
	"log/slog"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/cache"
	"github.com/perpetuaapp/perpetua-client/internal/store"
)

// TagService serves tag discovery: popular tags, per-tag shelf lists,
// counts, and prefix search for tag autocomplete.
type TagService struct {
	store  *store.Store
	cache  *cache.Cache
	client api.Client
	logger *slog.Logger
}

// NewTagService creates a tag service.
func NewTagService(st *store.Store, c *cache.Cache, client api.Client, logger *slog.Logger) *TagService {
	return &TagService{store: st, cache: c, client: client, logger: logger}
}

// FetchPopularTags returns one page of tags ordered by shelf count.
func (t *TagService) FetchPopularTags(ctx context.Context, cursor string, limit int) (api.TagsPage, error) {
	var page api.TagsPage
	err := run(t.store, store.OpTags, "popular", func() error {
		p, err := t.client.GetPopularTags(ctx, cursor, normalizeLimit(limit))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

// FetchShelvesByTag loads one page of a tag's shelves into the store.
// The first page replaces the tag's ID list; later pages append with
// boundary duplicates dropped. The next cursor is returned, empty when
// the listing is exhausted.
func (t *TagService) FetchShelvesByTag(ctx context.Context, tag, cursor string, limit int) (string, error) {
	var next string
	err := run(t.store, store.OpTags, "tag:"+tag, func() error {
		page, err := t.client.GetShelvesByTag(ctx, tag, cursor, normalizeLimit(limit))
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(page.Items))
		for _, wire := range page.Items {
			t.store.UpsertShelf(wire)
			ids = append(ids, wire.ShelfID)
		}

		mode := store.Replace
		if cursor != "" {
			mode = store.Append
		}
		t.store.SetOrderForView(store.TagView(tag), ids, mode)
		next = page.NextCursor
		return nil
	})
	return next, err
}

// FetchTagShelfCount returns how many shelves carry a tag, cached with
// the standard TTL.
func (t *TagService) FetchTagShelfCount(ctx context.Context, tag string) (uint64, error) {
	if v, ok := t.cache.Get(tag, cacheTypeTagCount); ok {
		return v.(uint64), nil
	}

	var count uint64
	err := run(t.store, store.OpTags, "count:"+tag, func() error {
		c, err := t.client.GetTagShelfCount(ctx, tag)
		if err != nil {
			return err
		}
		count = c
		t.cache.Set(tag, cacheTypeTagCount, count)
		return nil
	})
	return count, err
}

// FetchTagsWithPrefix returns one page of tags starting with prefix.
func (t *TagService) FetchTagsWithPrefix(ctx context.Context, prefix, cursor string, limit int) (api.TagsPage, error) {
	var page api.TagsPage
	err := run(t.store, store.OpTags, "prefix:"+prefix, func() error {
		p, err := t.client.GetTagsWithPrefix(ctx, prefix, cursor, normalizeLimit(limit))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}
