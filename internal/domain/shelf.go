// Package domain holds the normalized Perpetua data model: shelves, items,
// item content variants, and the conversions between wire and client forms.
package domain

import (
	"encoding/json/v2"
	"fmt"
	"slices"
)

// Item is a single entry in a shelf. The ID is shelf-scoped; content is
// immutable once set.
type Item struct {
	ID      uint32
	Content ItemContent
}

type wireItem struct {
	ID      uint32          `json:"id"`
	Content contentEnvelope `json:"content"`
}

// MarshalJSON encodes the item with its tagged content variant.
func (i Item) MarshalJSON() ([]byte, error) {
	env, err := encodeContent(i.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireItem{ID: i.ID, Content: env})
}

// UnmarshalJSON decodes an item, rejecting unknown content shapes.
func (i *Item) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := w.Content.decode()
	if err != nil {
		return err
	}
	i.ID = w.ID
	i.Content = content
	return nil
}

// ItemPosition orders one item within a shelf. Position values are used
// purely for sorting, never as array indices; gaps are expected so an
// insertion between neighbors doesn't cascade position rewrites.
type ItemPosition struct {
	ItemID   uint32  `json:"item_id"`
	Position float64 `json:"position"`
}

// WirePrincipal is the backend's object form of a principal.
type WirePrincipal struct {
	Principal string `json:"principal"`
}

// WireShelf is a shelf as the backend sends it: owner as a principal
// object, timestamps as 64-bit integers, items as an entry list.
type WireShelf struct {
	ShelfID       string         `json:"shelf_id"`
	Owner         WirePrincipal  `json:"owner"`
	Title         string         `json:"title"`
	Description   *string        `json:"description,omitempty"`
	Items         []Item         `json:"items"`
	ItemPositions []ItemPosition `json:"item_positions"`
	Tags          []string       `json:"tags"`
	AppearsIn     []string       `json:"appears_in"`
	CreatedAt     uint64         `json:"created_at"`
	UpdatedAt     uint64         `json:"updated_at"`
	PublicEditing bool           `json:"public_editing"`
}

// Shelf is the normalized client-side record: owner as a bare string,
// timestamps as decimal strings, items keyed by ID. Exactly one Shelf
// exists per shelf_id in the entity store; every view references it by
// ID only.
type Shelf struct {
	ShelfID       string
	Owner         Principal
	Title         string
	Description   *string
	Items         map[uint32]Item
	ItemPositions []ItemPosition
	Tags          []string
	AppearsIn     []string
	CreatedAt     Timestamp
	UpdatedAt     Timestamp
	PublicEditing bool
}

// Normalize converts a wire shelf into the client form.
func Normalize(w WireShelf) Shelf {
	items := make(map[uint32]Item, len(w.Items))
	for _, item := range w.Items {
		items[item.ID] = item
	}

	return Shelf{
		ShelfID:       w.ShelfID,
		Owner:         Principal(w.Owner.Principal),
		Title:         w.Title,
		Description:   w.Description,
		Items:         items,
		ItemPositions: slices.Clone(w.ItemPositions),
		Tags:          slices.Clone(w.Tags),
		AppearsIn:     slices.Clone(w.AppearsIn),
		CreatedAt:     TimestampFromNanos(w.CreatedAt),
		UpdatedAt:     TimestampFromNanos(w.UpdatedAt),
		PublicEditing: w.PublicEditing,
	}
}

// Denormalize converts a normalized shelf back to the wire form, item
// entries sorted by ID for determinism. It fails on timestamps that do
// not parse back to 64-bit integers.
func (s Shelf) Denormalize() (WireShelf, error) {
	created, err := s.CreatedAt.Nanos()
	if err != nil {
		return WireShelf{}, fmt.Errorf("shelf %s created_at: %w", s.ShelfID, err)
	}
	updated, err := s.UpdatedAt.Nanos()
	if err != nil {
		return WireShelf{}, fmt.Errorf("shelf %s updated_at: %w", s.ShelfID, err)
	}

	items := make([]Item, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b Item) int {
		return int(a.ID) - int(b.ID)
	})

	return WireShelf{
		ShelfID:       s.ShelfID,
		Owner:         WirePrincipal{Principal: string(s.Owner)},
		Title:         s.Title,
		Description:   s.Description,
		Items:         items,
		ItemPositions: slices.Clone(s.ItemPositions),
		Tags:          slices.Clone(s.Tags),
		AppearsIn:     slices.Clone(s.AppearsIn),
		CreatedAt:     created,
		UpdatedAt:     updated,
		PublicEditing: s.PublicEditing,
	}, nil
}

// Validate checks the position invariant: every position must reference
// an item present in Items.
func (s Shelf) Validate() error {
	for _, pos := range s.ItemPositions {
		if _, ok := s.Items[pos.ItemID]; !ok {
			return fmt.Errorf("shelf %s: position references missing item %d", s.ShelfID, pos.ItemID)
		}
	}
	return nil
}

// OrderedItemIDs returns the item IDs sorted by position value, ties
// broken by list order. Positions referencing missing items are skipped;
// a dangling position means the item fetch has not caught up yet.
func (s Shelf) OrderedItemIDs() []uint32 {
	positions := slices.Clone(s.ItemPositions)
	slices.SortStableFunc(positions, func(a, b ItemPosition) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		default:
			return 0
		}
	})

	ids := make([]uint32, 0, len(positions))
	for _, pos := range positions {
		if _, ok := s.Items[pos.ItemID]; ok {
			ids = append(ids, pos.ItemID)
		}
	}
	return ids
}

// OrderedItems returns the items in display order.
func (s Shelf) OrderedItems() []Item {
	ids := s.OrderedItemIDs()
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.Items[id])
	}
	return items
}

// HasTag reports whether the shelf carries the given tag.
func (s Shelf) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// IsOwnedBy reports whether the given principal owns the shelf.
// Anonymous owns nothing.
func (s Shelf) IsOwnedBy(p Principal) bool {
	return !p.IsAnonymous() && s.Owner == p
}
