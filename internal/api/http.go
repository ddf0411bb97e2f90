package api

import (
	"bytes"
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/perpetuaapp/perpetua-client/internal/config"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
	"github.com/perpetuaapp/perpetua-client/internal/ratelimit"
)

// envelope is the backend's result shape: exactly one of Ok or Err is
// present. A response matching neither is an unexpected-shape error.
type envelope struct {
	Ok  jsontext.Value `json:"Ok,omitempty"`
	Err *string        `json:"Err,omitempty"`
}

// HTTPClient implements Client over HTTP, one POST per operation.
type HTTPClient struct {
	base      string
	principal domain.Principal
	http      *http.Client
	limiter   *ratelimit.KeyedRateLimiter
	logger    *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a rate-limited client for the backend described
// by cfg, acting as the given principal.
func NewHTTPClient(cfg config.BackendConfig, principal domain.Principal, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPClient{
		base:      strings.TrimRight(cfg.URL, "/"),
		principal: principal,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: ratelimit.New(cfg.RateRPS, cfg.RateBurst),
		logger:  logger,
	}
}

// Close releases resources held by the client.
func (c *HTTPClient) Close() {
	c.limiter.Stop()
}

// call executes one RPC round trip. The request body is the marshaled
// args; the Ok payload is decoded into out when out is non-nil.
func (c *HTTPClient) call(ctx context.Context, op string, args any, out any) error {
	if err := c.limiter.Wait(ctx, op); err != nil {
		return domainerrors.Transport("rate limit wait", err)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	requestID := uuid.NewString()
	url := c.base + "/rpc/" + op

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domainerrors.Transport("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if !c.principal.IsAnonymous() {
		req.Header.Set("X-Perpetua-Principal", string(c.principal))
	}

	c.logger.Debug("rpc request", "op", op, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return domainerrors.Transport(fmt.Sprintf("call %s", op), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainerrors.Transport(fmt.Sprintf("read %s response", op), err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return domainerrors.Transport(fmt.Sprintf("%s returned status %d", op, resp.StatusCode), nil)
		}
		return domainerrors.UnexpectedShape(fmt.Sprintf("%s response is not a result envelope", op)).WithCause(err)
	}

	if env.Err != nil {
		c.logger.Debug("rpc error", "op", op, "request_id", requestID, "error", *env.Err)
		return domainerrors.Backend(*env.Err)
	}
	if env.Ok == nil {
		c.logger.Warn("rpc response matched neither Ok nor Err", "op", op, "request_id", requestID)
		return domainerrors.UnexpectedShape(fmt.Sprintf("%s response carried neither Ok nor Err", op))
	}
	if out != nil {
		if err := json.Unmarshal(env.Ok, out); err != nil {
			return domainerrors.UnexpectedShape(fmt.Sprintf("%s Ok payload has unexpected shape", op)).WithCause(err)
		}
	}
	return nil
}

type pageArgs struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit"`
}

func (c *HTTPClient) GetUserShelves(ctx context.Context, principal domain.Principal, offset, limit int) (ShelvesPage, error) {
	args := struct {
		Principal string `json:"principal"`
		Offset    int    `json:"offset"`
		Limit     int    `json:"limit"`
	}{string(principal), offset, limit}

	var page ShelvesPage
	if err := c.call(ctx, "get_user_shelves", args, &page); err != nil {
		return ShelvesPage{}, err
	}
	return page, nil
}

func (c *HTTPClient) GetShelf(ctx context.Context, shelfID string) (domain.WireShelf, error) {
	args := struct {
		ShelfID string `json:"shelf_id"`
	}{shelfID}

	var shelf domain.WireShelf
	if err := c.call(ctx, "get_shelf", args, &shelf); err != nil {
		return domain.WireShelf{}, err
	}
	return shelf, nil
}

func (c *HTTPClient) GetRecentShelves(ctx context.Context, cursor string, limit int) (FeedPage, error) {
	var page FeedPage
	if err := c.call(ctx, "get_recent_shelves", pageArgs{cursor, limit}, &page); err != nil {
		return FeedPage{}, err
	}
	return page, nil
}

func (c *HTTPClient) StoreShelf(ctx context.Context, title string, description *string, items []domain.ItemContent, tags []string) (string, error) {
	encoded := make([]jsontext.Value, 0, len(items))
	for _, content := range items {
		data, err := domain.MarshalContent(content)
		if err != nil {
			return "", err
		}
		encoded = append(encoded, jsontext.Value(data))
	}

	args := struct {
		Title       string           `json:"title"`
		Description *string          `json:"description,omitempty"`
		Items       []jsontext.Value `json:"items"`
		Tags        []string         `json:"tags,omitempty"`
	}{title, description, encoded, tags}

	var shelfID string
	if err := c.call(ctx, "store_shelf", args, &shelfID); err != nil {
		return "", err
	}
	return shelfID, nil
}

func (c *HTTPClient) UpdateShelfMetadata(ctx context.Context, shelfID string, title, description *string) error {
	args := struct {
		ShelfID     string  `json:"shelf_id"`
		Title       *string `json:"title,omitempty"`
		Description *string `json:"description,omitempty"`
	}{shelfID, title, description}
	return c.call(ctx, "update_shelf_metadata", args, nil)
}

func (c *HTTPClient) AddItemToShelf(ctx context.Context, shelfID string, item NewItem) error {
	content, err := domain.MarshalContent(item.Content)
	if err != nil {
		return err
	}
	args := struct {
		ShelfID         string         `json:"shelf_id"`
		Content         jsontext.Value `json:"content"`
		ReferenceItemID *uint32        `json:"reference_item_id,omitempty"`
		Before          bool           `json:"before"`
	}{shelfID, jsontext.Value(content), item.ReferenceItemID, item.Before}
	return c.call(ctx, "add_item_to_shelf", args, nil)
}

func (c *HTTPClient) RemoveItemFromShelf(ctx context.Context, shelfID string, itemID uint32) error {
	args := struct {
		ShelfID string `json:"shelf_id"`
		ItemID  uint32 `json:"item_id"`
	}{shelfID, itemID}
	return c.call(ctx, "remove_item_from_shelf", args, nil)
}

func (c *HTTPClient) SetItemOrder(ctx context.Context, shelfID string, orderedItemIDs []uint32) error {
	args := struct {
		ShelfID        string   `json:"shelf_id"`
		OrderedItemIDs []uint32 `json:"ordered_item_ids"`
	}{shelfID, orderedItemIDs}
	return c.call(ctx, "set_item_order", args, nil)
}

func (c *HTTPClient) ReorderProfileShelf(ctx context.Context, shelfID string, referenceShelfID *string, before bool) error {
	args := struct {
		ShelfID          string  `json:"shelf_id"`
		ReferenceShelfID *string `json:"reference_shelf_id,omitempty"`
		Before           bool    `json:"before"`
	}{shelfID, referenceShelfID, before}
	return c.call(ctx, "reorder_profile_shelf", args, nil)
}

func (c *HTTPClient) IsShelfPublic(ctx context.Context, shelfID string) (bool, error) {
	args := struct {
		ShelfID string `json:"shelf_id"`
	}{shelfID}

	var public bool
	if err := c.call(ctx, "is_shelf_public", args, &public); err != nil {
		return false, err
	}
	return public, nil
}

func (c *HTTPClient) ToggleShelfPublicAccess(ctx context.Context, shelfID string, public bool) error {
	args := struct {
		ShelfID string `json:"shelf_id"`
		Public  bool   `json:"public"`
	}{shelfID, public}
	return c.call(ctx, "toggle_shelf_public_access", args, nil)
}

type tagArgs struct {
	Tag string `json:"tag"`
}

func (c *HTTPClient) FollowTag(ctx context.Context, tag string) error {
	return c.call(ctx, "follow_tag", tagArgs{tag}, nil)
}

func (c *HTTPClient) UnfollowTag(ctx context.Context, tag string) error {
	return c.call(ctx, "unfollow_tag", tagArgs{tag}, nil)
}

type principalArgs struct {
	Principal string `json:"principal"`
}

func (c *HTTPClient) FollowUser(ctx context.Context, principal domain.Principal) error {
	return c.call(ctx, "follow_user", principalArgs{string(principal)}, nil)
}

func (c *HTTPClient) UnfollowUser(ctx context.Context, principal domain.Principal) error {
	return c.call(ctx, "unfollow_user", principalArgs{string(principal)}, nil)
}

func (c *HTTPClient) GetMyFollowedTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := c.call(ctx, "get_my_followed_tags", struct{}{}, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *HTTPClient) GetMyFollowedUsers(ctx context.Context) ([]string, error) {
	var users []string
	if err := c.call(ctx, "get_my_followed_users", struct{}{}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *HTTPClient) GetPopularTags(ctx context.Context, cursor string, limit int) (TagsPage, error) {
	var page TagsPage
	if err := c.call(ctx, "get_popular_tags", pageArgs{cursor, limit}, &page); err != nil {
		return TagsPage{}, err
	}
	return page, nil
}

func (c *HTTPClient) GetShelvesByTag(ctx context.Context, tag, cursor string, limit int) (FeedPage, error) {
	args := struct {
		Tag    string `json:"tag"`
		Cursor string `json:"cursor,omitempty"`
		Limit  int    `json:"limit"`
	}{tag, cursor, limit}

	var page FeedPage
	if err := c.call(ctx, "get_shelves_by_tag", args, &page); err != nil {
		return FeedPage{}, err
	}
	return page, nil
}

func (c *HTTPClient) GetTagShelfCount(ctx context.Context, tag string) (uint64, error) {
	var count uint64
	if err := c.call(ctx, "get_tag_shelf_count", tagArgs{tag}, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *HTTPClient) GetTagsWithPrefix(ctx context.Context, prefix, cursor string, limit int) (TagsPage, error) {
	args := struct {
		Prefix string `json:"prefix"`
		Cursor string `json:"cursor,omitempty"`
		Limit  int    `json:"limit"`
	}{prefix, cursor, limit}

	var page TagsPage
	if err := c.call(ctx, "get_tags_with_prefix", args, &page); err != nil {
		return TagsPage{}, err
	}
	return page, nil
}

func (c *HTTPClient) GetShuffledByHourFeed(ctx context.Context, limit int) ([]domain.WireShelf, error) {
	args := struct {
		Limit int `json:"limit"`
	}{limit}

	var shelves []domain.WireShelf
	if err := c.call(ctx, "get_shuffled_by_hour_feed", args, &shelves); err != nil {
		return nil, err
	}
	return shelves, nil
}

func (c *HTTPClient) GetStorylineFeed(ctx context.Context, cursor string, limit int) (FeedPage, error) {
	var page FeedPage
	if err := c.call(ctx, "get_storyline_feed", pageArgs{cursor, limit}, &page); err != nil {
		return FeedPage{}, err
	}
	return page, nil
}
