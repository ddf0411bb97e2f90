package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/cache"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
	"github.com/perpetuaapp/perpetua-client/internal/store"
	"github.com/perpetuaapp/perpetua-client/internal/validation"
)

// ShelfService drives shelf loading and mutation through the pipeline.
type ShelfService struct {
	store     *store.Store
	cache     *cache.Cache
	client    api.Client
	validator *validation.Validator
	logger    *slog.Logger
	now       nowFunc
}

// NewShelfService creates a shelf service.
func NewShelfService(st *store.Store, c *cache.Cache, client api.Client, v *validation.Validator, logger *slog.Logger) *ShelfService {
	return &ShelfService{
		store:     st,
		cache:     c,
		client:    client,
		validator: v,
		logger:    logger,
		now:       defaultNow,
	}
}

// createShelfInput carries the validated create parameters.
type createShelfInput struct {
	Title       string  `json:"title" validate:"required,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// LoadShelves fetches one page of a user's shelves. Offset zero
// replaces the user's ID list, a later offset appends to it. The total
// count is returned for pagination controls.
func (s *ShelfService) LoadShelves(ctx context.Context, principal domain.Principal, offset, limit int) (int, error) {
	limit = normalizeLimit(limit)

	var total int
	err := run(s.store, store.OpLoadShelves, principal.String(), func() error {
		page, err := s.client.GetUserShelves(ctx, principal, offset, limit)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(page.Items))
		for _, wire := range page.Items {
			s.store.UpsertShelf(wire)
			ids = append(ids, wire.ShelfID)
		}

		mode := store.Replace
		if offset > 0 {
			mode = store.Append
		}
		s.store.SetOrderForView(s.viewFor(principal), ids, mode)
		total = page.TotalCount
		return nil
	})
	return total, err
}

// LoadShelf fetches a single shelf and upserts it.
func (s *ShelfService) LoadShelf(ctx context.Context, shelfID string) error {
	return run(s.store, store.OpLoadShelf, shelfID, func() error {
		wire, err := s.client.GetShelf(ctx, shelfID)
		if err != nil {
			return err
		}
		s.store.UpsertShelf(wire)
		return nil
	})
}

// CreateShelf stores a new shelf and, on success, synthesizes the
// normalized record locally and unshifts it onto the personal list so
// the UI reflects it without waiting for a refetch.
func (s *ShelfService) CreateShelf(ctx context.Context, title string, description *string, contents []domain.ItemContent, tags []string) (string, error) {
	principal := s.store.Session()
	if principal.IsAnonymous() {
		return "", domainerrors.Unauthorized("sign in to create a shelf")
	}
	if err := s.validator.Validate(createShelfInput{Title: strings.TrimSpace(title), Description: description}); err != nil {
		return "", err
	}

	var shelfID string
	err := run(s.store, store.OpCreateShelf, principal.String(), func() error {
		id, err := s.client.StoreShelf(ctx, title, description, contents, tags)
		if err != nil {
			return err
		}
		shelfID = id

		now := domain.TimestampFromTime(s.now())
		items := make(map[uint32]domain.Item, len(contents))
		positions := make([]domain.ItemPosition, 0, len(contents))
		for i, content := range contents {
			itemID := uint32(i + 1)
			items[itemID] = domain.Item{ID: itemID, Content: content}
			positions = append(positions, domain.ItemPosition{ItemID: itemID, Position: float64(i + 1)})
		}
		s.store.UpsertNormalized(domain.Shelf{
			ShelfID:       shelfID,
			Owner:         principal,
			Title:         title,
			Description:   description,
			Items:         items,
			ItemPositions: positions,
			Tags:          slices.Clone(tags),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		s.store.UnshiftIntoView(store.PersonalView(principal), shelfID)
		s.cache.InvalidateForPrincipal(principal.String())
		return nil
	})
	if err != nil {
		return "", err
	}
	return shelfID, nil
}

// UpdateShelfMetadata patches the title and/or description. The local
// record is updated in place on success; item state is untouched.
func (s *ShelfService) UpdateShelfMetadata(ctx context.Context, shelfID string, title, description *string) error {
	if title != nil {
		if err := s.validator.Validate(createShelfInput{Title: strings.TrimSpace(*title), Description: description}); err != nil {
			return err
		}
	}
	return run(s.store, store.OpUpdateShelf, shelfID, func() error {
		if err := s.client.UpdateShelfMetadata(ctx, shelfID, title, description); err != nil {
			return err
		}
		if shelf, ok := s.store.Shelf(shelfID); ok {
			updated := *shelf
			if title != nil {
				updated.Title = *title
			}
			if description != nil {
				updated.Description = description
			}
			updated.UpdatedAt = domain.TimestampFromTime(s.now())
			s.store.UpsertNormalized(updated)
		}
		s.cache.InvalidateForShelf(shelfID)
		return nil
	})
}

// AddItem appends or inserts an item. There is no optimistic splice:
// item IDs are assigned by the backend, so the shelf is refetched after
// the mutation and the authoritative copy replaces the local one.
func (s *ShelfService) AddItem(ctx context.Context, shelfID string, content domain.ItemContent, referenceItemID *uint32, before bool) error {
	if sc, ok := content.(domain.ShelfContent); ok && sc.ShelfID == shelfID {
		return domainerrors.Validation("a shelf cannot be added to itself")
	}
	return run(s.store, store.OpAddItem, shelfID, func() error {
		err := s.client.AddItemToShelf(ctx, shelfID, api.NewItem{
			Content:         content,
			ReferenceItemID: referenceItemID,
			Before:          before,
		})
		if err != nil {
			return err
		}
		s.cache.InvalidateForShelf(shelfID)
		return s.refetch(ctx, shelfID)
	})
}

// AddMarkdownItemFromHTML converts pasted HTML to markdown and adds it
// as a markdown item.
func (s *ShelfService) AddMarkdownItemFromHTML(ctx context.Context, shelfID, html string, referenceItemID *uint32, before bool) error {
	content, err := domain.MarkdownFromHTML(html)
	if err != nil {
		return err
	}
	if content.Text == "" {
		return domainerrors.Validation("content is empty")
	}
	return s.AddItem(ctx, shelfID, content, referenceItemID, before)
}

// RemoveItem deletes an item and refetches the shelf.
func (s *ShelfService) RemoveItem(ctx context.Context, shelfID string, itemID uint32) error {
	return run(s.store, store.OpRemoveItem, shelfID, func() error {
		if err := s.client.RemoveItemFromShelf(ctx, shelfID, itemID); err != nil {
			return err
		}
		s.cache.InvalidateForShelf(shelfID)
		return s.refetch(ctx, shelfID)
	})
}

// SetItemOrder replaces a shelf's item order wholesale. The confirmed
// order is kept as a local override so display order is stable even
// before the next shelf refetch.
func (s *ShelfService) SetItemOrder(ctx context.Context, shelfID string, orderedItemIDs []uint32) error {
	return run(s.store, store.OpSetItemOrder, shelfID, func() error {
		if err := s.client.SetItemOrder(ctx, shelfID, orderedItemIDs); err != nil {
			return err
		}
		s.store.SetItemOrder(shelfID, orderedItemIDs)
		s.cache.InvalidateForShelf(shelfID)
		return nil
	})
}

// ReorderProfileShelf moves a shelf within the signed-in user's profile
// order. When newShelfOrder is given it is applied optimistically
// before the call; on failure the optimistic order is discarded by
// refetching the authoritative list.
func (s *ShelfService) ReorderProfileShelf(ctx context.Context, shelfID string, referenceShelfID *string, before bool, newShelfOrder []string) error {
	principal := s.store.Session()
	if principal.IsAnonymous() {
		return domainerrors.Unauthorized("sign in to reorder shelves")
	}

	optimistic := len(newShelfOrder) > 0
	if optimistic {
		s.store.SetOrderForView(store.PersonalView(principal), newShelfOrder, store.Replace)
	}

	return run(s.store, store.OpReorderShelf, shelfID, func() error {
		err := s.client.ReorderProfileShelf(ctx, shelfID, referenceShelfID, before)
		if err != nil {
			if optimistic {
				s.discardOptimisticOrder(ctx, principal, len(newShelfOrder))
			}
			return err
		}
		return nil
	})
}

// discardOptimisticOrder reloads the authoritative profile order after
// a failed optimistic reorder, covering at least as many shelves as
// were loaded before. A failure here is only logged; the original
// error is the one surfaced.
func (s *ShelfService) discardOptimisticOrder(ctx context.Context, principal domain.Principal, loaded int) {
	page, err := s.client.GetUserShelves(ctx, principal, 0, max(loaded, DefaultPageSize))
	if err != nil {
		s.logger.Warn("discard optimistic order: reload failed", "principal", principal, "error", err)
		return
	}
	ids := make([]string, 0, len(page.Items))
	for _, wire := range page.Items {
		s.store.UpsertShelf(wire)
		ids = append(ids, wire.ShelfID)
	}
	s.store.SetOrderForView(store.PersonalView(principal), ids, store.Replace)
}

// CheckShelfPublicAccess answers whether a shelf is publicly editable,
// serving from the TTL cache when the last answer is still fresh.
func (s *ShelfService) CheckShelfPublicAccess(ctx context.Context, shelfID string) (bool, error) {
	if v, ok := s.cache.Get(shelfID, cacheTypeShelfAccess); ok {
		if public, ok := v.(bool); ok {
			s.store.SetPublicAccess(shelfID, public)
			return public, nil
		}
		s.cache.Invalidate(shelfID, cacheTypeShelfAccess)
	}

	var public bool
	err := run(s.store, store.OpCheckAccess, shelfID, func() error {
		v, err := s.client.IsShelfPublic(ctx, shelfID)
		if err != nil {
			return err
		}
		public = v
		s.cache.Set(shelfID, cacheTypeShelfAccess, public)
		s.store.SetPublicAccess(shelfID, public)
		return nil
	})
	return public, err
}

// ToggleShelfPublicAccess flips public editing and records the
// confirmed value locally.
func (s *ShelfService) ToggleShelfPublicAccess(ctx context.Context, shelfID string, public bool) error {
	return run(s.store, store.OpToggleAccess, shelfID, func() error {
		if err := s.client.ToggleShelfPublicAccess(ctx, shelfID, public); err != nil {
			return err
		}
		s.store.SetPublicAccess(shelfID, public)
		if shelf, ok := s.store.Shelf(shelfID); ok {
			updated := *shelf
			updated.PublicEditing = public
			s.store.UpsertNormalized(updated)
		}
		s.cache.Invalidate(shelfID, cacheTypeShelfAccess)
		return nil
	})
}

func (s *ShelfService) refetch(ctx context.Context, shelfID string) error {
	wire, err := s.client.GetShelf(ctx, shelfID)
	if err != nil {
		return err
	}
	s.store.UpsertShelf(wire)
	return nil
}

func (s *ShelfService) viewFor(principal domain.Principal) store.ViewKey {
	if principal == s.store.Session() {
		return store.PersonalView(principal)
	}
	return store.UserView(principal)
}
