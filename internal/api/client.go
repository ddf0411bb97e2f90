// Package api is the RPC client for the Perpetua backend. Every
// operation posts a JSON body to {base}/rpc/{op} and receives an
// envelope holding either an Ok payload or an Err string.
package api

import (
	"context"

	"github.com/perpetuaapp/perpetua-client/internal/domain"
)

// ShelvesPage is one offset-paginated page of a user's shelves. The
// total count drives pagination UI.
type ShelvesPage struct {
	Items      []domain.WireShelf `json:"items"`
	TotalCount int                `json:"total_count"`
	Offset     int                `json:"offset"`
	Limit      int                `json:"limit"`
}

// FeedPage is one cursor-paginated page of shelves. An empty NextCursor
// means the feed is exhausted.
type FeedPage struct {
	Items      []domain.WireShelf `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// TagCount pairs a tag with the number of shelves carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count uint64 `json:"count"`
}

// TagsPage is one cursor-paginated page of tags.
type TagsPage struct {
	Items      []TagCount `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewItem describes an item to append or insert into a shelf. When
// ReferenceItemID is nil the item goes to the end of the shelf;
// otherwise it is placed before or after the referenced item.
type NewItem struct {
	Content         domain.ItemContent
	ReferenceItemID *uint32
	Before          bool
}

// Client is the backend surface the state layer consumes. Implementations
// must be safe for concurrent use.
type Client interface {
	// Shelf queries.
	GetUserShelves(ctx context.Context, principal domain.Principal, offset, limit int) (ShelvesPage, error)
	GetShelf(ctx context.Context, shelfID string) (domain.WireShelf, error)
	GetRecentShelves(ctx context.Context, cursor string, limit int) (FeedPage, error)

	// Shelf mutations.
	StoreShelf(ctx context.Context, title string, description *string, items []domain.ItemContent, tags []string) (string, error)
	UpdateShelfMetadata(ctx context.Context, shelfID string, title, description *string) error
	AddItemToShelf(ctx context.Context, shelfID string, item NewItem) error
	RemoveItemFromShelf(ctx context.Context, shelfID string, itemID uint32) error
	SetItemOrder(ctx context.Context, shelfID string, orderedItemIDs []uint32) error
	ReorderProfileShelf(ctx context.Context, shelfID string, referenceShelfID *string, before bool) error

	// Public access.
	IsShelfPublic(ctx context.Context, shelfID string) (bool, error)
	ToggleShelfPublicAccess(ctx context.Context, shelfID string, public bool) error

	// Follow graph.
	FollowTag(ctx context.Context, tag string) error
	UnfollowTag(ctx context.Context, tag string) error
	FollowUser(ctx context.Context, principal domain.Principal) error
	UnfollowUser(ctx context.Context, principal domain.Principal) error
	GetMyFollowedTags(ctx context.Context) ([]string, error)
	GetMyFollowedUsers(ctx context.Context) ([]string, error)

	// Tag discovery.
	GetPopularTags(ctx context.Context, cursor string, limit int) (TagsPage, error)
	GetShelvesByTag(ctx context.Context, tag, cursor string, limit int) (FeedPage, error)
	GetTagShelfCount(ctx context.Context, tag string) (uint64, error)
	GetTagsWithPrefix(ctx context.Context, prefix, cursor string, limit int) (TagsPage, error)

	// Feeds.
	GetShuffledByHourFeed(ctx context.Context, limit int) ([]domain.WireShelf, error)
	GetStorylineFeed(ctx context.Context, cursor string, limit int) (FeedPage, error)

	// Close releases resources held by the client.
	Close()
}
