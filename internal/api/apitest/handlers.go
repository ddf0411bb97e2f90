package apitest

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/perpetuaapp/perpetua-client/internal/api"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
)

func decode[T any](body []byte) (T, bool) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, false
	}
	return v, true
}

func (b *Backend) handleGetUserShelves(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Principal string `json:"principal"`
		Offset    int    `json:"offset"`
		Limit     int    `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}
	limit := clampLimit(args.Limit)

	b.mu.Lock()
	defer b.mu.Unlock()

	order := b.profileOrder[args.Principal]
	total := len(order)

	items := make([]domain.WireShelf, 0, limit)
	for i := args.Offset; i < total && len(items) < limit; i++ {
		if shelf, ok := b.shelves[order[i]]; ok {
			items = append(items, *shelf)
		}
	}

	return api.ShelvesPage{
		Items:      items,
		TotalCount: total,
		Offset:     args.Offset,
		Limit:      limit,
	}, ""
}

func (b *Backend) handleGetShelf(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID string `json:"shelf_id"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, ok := b.shelves[args.ShelfID]
	if !ok {
		return nil, "shelf not found"
	}
	return *shelf, ""
}

func (b *Backend) handleStoreShelf(principal string, body []byte) (any, string) {
	if principal == "" {
		return nil, "unauthorized"
	}
	args, ok := decode[struct {
		Title       string           `json:"title"`
		Description *string          `json:"description"`
		Items       []jsontext.Value `json:"items"`
		Tags        []string         `json:"tags"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}
	if strings.TrimSpace(args.Title) == "" {
		return nil, "title is required"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balanceLocked(principal)
	if balance < StoreShelfCost {
		return nil, "not enough balance to create a shelf"
	}

	now := uint64(b.now().UnixNano())
	shelfID := b.newShelfID()

	items := make([]domain.Item, 0, len(args.Items))
	positions := make([]domain.ItemPosition, 0, len(args.Items))
	for i, raw := range args.Items {
		content, err := domain.UnmarshalContent(raw)
		if err != nil {
			return nil, "invalid item content"
		}
		if sc, isShelf := content.(domain.ShelfContent); isShelf {
			if b.wouldCycleLocked(sc.ShelfID, shelfID) {
				return nil, "circular reference detected"
			}
		}
		itemID := uint32(i + 1)
		items = append(items, domain.Item{ID: itemID, Content: content})
		positions = append(positions, domain.ItemPosition{
			ItemID:   itemID,
			Position: float64(i+1) * positionGap,
		})
	}

	shelf := &domain.WireShelf{
		ShelfID:       shelfID,
		Owner:         domain.WirePrincipal{Principal: principal},
		Title:         args.Title,
		Description:   args.Description,
		Items:         items,
		ItemPositions: positions,
		Tags:          args.Tags,
		AppearsIn:     []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	b.shelves[shelfID] = shelf
	b.nextItemID[shelfID] = uint32(len(items) + 1)
	b.profileOrder[principal] = append([]string{shelfID}, b.profileOrder[principal]...)
	b.balances[principal] = balance - StoreShelfCost

	return shelfID, ""
}

func (b *Backend) handleUpdateShelfMetadata(principal string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID     string  `json:"shelf_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, errMsg := b.editableShelfLocked(args.ShelfID, principal)
	if errMsg != "" {
		return nil, errMsg
	}
	if args.Title != nil {
		if strings.TrimSpace(*args.Title) == "" {
			return nil, "title is required"
		}
		shelf.Title = *args.Title
	}
	if args.Description != nil {
		shelf.Description = args.Description
	}
	shelf.UpdatedAt = uint64(b.now().UnixNano())
	return nil, ""
}

func (b *Backend) handleAddItemToShelf(principal string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID         string         `json:"shelf_id"`
		Content         jsontext.Value `json:"content"`
		ReferenceItemID *uint32        `json:"reference_item_id"`
		Before          bool           `json:"before"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}
	content, err := domain.UnmarshalContent(args.Content)
	if err != nil {
		return nil, "invalid item content"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, errMsg := b.editableShelfLocked(args.ShelfID, principal)
	if errMsg != "" {
		return nil, errMsg
	}

	if sc, isShelf := content.(domain.ShelfContent); isShelf {
		if b.wouldCycleLocked(sc.ShelfID, args.ShelfID) {
			return nil, "circular reference detected"
		}
		if nested, ok := b.shelves[sc.ShelfID]; ok {
			nested.AppearsIn = appendUnique(nested.AppearsIn, args.ShelfID)
		}
	}

	itemID := b.nextItemID[args.ShelfID]
	if itemID == 0 {
		itemID = 1
	}
	b.nextItemID[args.ShelfID] = itemID + 1

	shelf.Items = append(shelf.Items, domain.Item{ID: itemID, Content: content})
	shelf.ItemPositions = insertPosition(shelf.ItemPositions, itemID, args.ReferenceItemID, args.Before)
	shelf.UpdatedAt = uint64(b.now().UnixNano())
	return nil, ""
}

func (b *Backend) handleRemoveItemFromShelf(principal string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID string `json:"shelf_id"`
		ItemID  uint32 `json:"item_id"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, errMsg := b.editableShelfLocked(args.ShelfID, principal)
	if errMsg != "" {
		return nil, errMsg
	}

	idx := slices.IndexFunc(shelf.Items, func(it domain.Item) bool { return it.ID == args.ItemID })
	if idx == -1 {
		return nil, "item not found"
	}
	shelf.Items = slices.Delete(shelf.Items, idx, idx+1)
	shelf.ItemPositions = slices.DeleteFunc(shelf.ItemPositions, func(p domain.ItemPosition) bool {
		return p.ItemID == args.ItemID
	})
	shelf.UpdatedAt = uint64(b.now().UnixNano())
	return nil, ""
}

func (b *Backend) handleSetItemOrder(principal string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID        string   `json:"shelf_id"`
		OrderedItemIDs []uint32 `json:"ordered_item_ids"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, errMsg := b.editableShelfLocked(args.ShelfID, principal)
	if errMsg != "" {
		return nil, errMsg
	}

	positions := make([]domain.ItemPosition, 0, len(args.OrderedItemIDs))
	for i, itemID := range args.OrderedItemIDs {
		if !slices.ContainsFunc(shelf.Items, func(it domain.Item) bool { return it.ID == itemID }) {
			return nil, "item not found"
		}
		positions = append(positions, domain.ItemPosition{
			ItemID:   itemID,
			Position: float64(i+1) * positionGap,
		})
	}
	shelf.ItemPositions = positions
	shelf.UpdatedAt = uint64(b.now().UnixNano())
	return nil, ""
}

func (b *Backend) handleReorderProfileShelf(principal string, body []byte) (any, string) {
	if principal == "" {
		return nil, "unauthorized"
	}
	args, ok := decode[struct {
		ShelfID          string  `json:"shelf_id"`
		ReferenceShelfID *string `json:"reference_shelf_id"`
		Before           bool    `json:"before"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order := b.profileOrder[principal]
	from := slices.Index(order, args.ShelfID)
	if from == -1 {
		return nil, "shelf not found"
	}

	order = slices.Delete(slices.Clone(order), from, from+1)
	if args.ReferenceShelfID == nil {
		// No reference places the shelf at the end.
		order = append(order, args.ShelfID)
	} else {
		ref := slices.Index(order, *args.ReferenceShelfID)
		if ref == -1 {
			return nil, "shelf not found"
		}
		if !args.Before {
			ref++
		}
		order = slices.Insert(order, ref, args.ShelfID)
	}
	b.profileOrder[principal] = order
	return nil, ""
}

func (b *Backend) handleIsShelfPublic(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID string `json:"shelf_id"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, ok := b.shelves[args.ShelfID]
	if !ok {
		return nil, "shelf not found"
	}
	return shelf.PublicEditing, ""
}

func (b *Backend) handleTogglePublicAccess(principal string, body []byte) (any, string) {
	args, ok := decode[struct {
		ShelfID string `json:"shelf_id"`
		Public  bool   `json:"public"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	shelf, ok := b.shelves[args.ShelfID]
	if !ok {
		return nil, "shelf not found"
	}
	// Only the owner may change access, public editing or not.
	if principal == "" || shelf.Owner.Principal != principal {
		return nil, "unauthorized"
	}
	shelf.PublicEditing = args.Public
	shelf.UpdatedAt = uint64(b.now().UnixNano())
	return nil, ""
}

func (b *Backend) handleFollowTag(principal string, body []byte) (any, string) {
	return b.mutateFollows(principal, body, func(f *followState, tag string) {
		f.tags = appendUnique(f.tags, tag)
	}, "tag")
}

func (b *Backend) handleUnfollowTag(principal string, body []byte) (any, string) {
	return b.mutateFollows(principal, body, func(f *followState, tag string) {
		f.tags = slices.DeleteFunc(f.tags, func(t string) bool { return t == tag })
	}, "tag")
}

func (b *Backend) handleFollowUser(principal string, body []byte) (any, string) {
	return b.mutateFollows(principal, body, func(f *followState, user string) {
		f.users = appendUnique(f.users, user)
	}, "principal")
}

func (b *Backend) handleUnfollowUser(principal string, body []byte) (any, string) {
	return b.mutateFollows(principal, body, func(f *followState, user string) {
		f.users = slices.DeleteFunc(f.users, func(u string) bool { return u == user })
	}, "principal")
}

func (b *Backend) mutateFollows(principal string, body []byte, apply func(*followState, string), field string) (any, string) {
	if principal == "" {
		return nil, "unauthorized"
	}
	var args map[string]string
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, "invalid request body"
	}
	value := args[field]
	if value == "" {
		if field == "principal" {
			return nil, "invalid principal"
		}
		return nil, field + " is required"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f := b.follows[principal]
	if f == nil {
		f = &followState{}
		b.follows[principal] = f
	}
	apply(f, value)
	return nil, ""
}

func (b *Backend) handleGetMyFollowedTags(principal string, _ []byte) (any, string) {
	if principal == "" {
		return nil, "unauthorized"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if f := b.follows[principal]; f != nil {
		return slices.Clone(f.tags), ""
	}
	return []string{}, ""
}

func (b *Backend) handleGetMyFollowedUsers(principal string, _ []byte) (any, string) {
	if principal == "" {
		return nil, "unauthorized"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if f := b.follows[principal]; f != nil {
		return slices.Clone(f.users), ""
	}
	return []string{}, ""
}

func (b *Backend) handleGetPopularTags(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}
	limit := clampLimit(args.Limit)

	b.mu.Lock()
	counts := make(map[string]uint64)
	for _, shelf := range b.shelves {
		for _, tag := range shelf.Tags {
			counts[tag]++
		}
	}
	b.mu.Unlock()

	tags := make([]api.TagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, api.TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})

	return pageTags(tags, args.Cursor, limit)
}

func (b *Backend) handleGetShelvesByTag(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Tag    string `json:"tag"`
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	shelves := b.shelvesSortedByRecency(func(s *domain.WireShelf) bool {
		return slices.Contains(s.Tags, args.Tag)
	})
	return pageShelves(shelves, args.Cursor, clampLimit(args.Limit))
}

func (b *Backend) handleGetTagShelfCount(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Tag string `json:"tag"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var count uint64
	for _, shelf := range b.shelves {
		if slices.Contains(shelf.Tags, args.Tag) {
			count++
		}
	}
	return count, ""
}

func (b *Backend) handleGetTagsWithPrefix(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Prefix string `json:"prefix"`
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}
	limit := clampLimit(args.Limit)

	b.mu.Lock()
	counts := make(map[string]uint64)
	for _, shelf := range b.shelves {
		for _, tag := range shelf.Tags {
			if strings.HasPrefix(tag, args.Prefix) {
				counts[tag]++
			}
		}
	}
	b.mu.Unlock()

	tags := make([]api.TagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, api.TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Tag < tags[j].Tag })

	return pageTags(tags, args.Cursor, limit)
}

func (b *Backend) handleGetRecentShelves(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	shelves := b.shelvesSortedByRecency(nil)
	return pageShelves(shelves, args.Cursor, clampLimit(args.Limit))
}

func (b *Backend) handleGetShuffledByHourFeed(_ string, body []byte) (any, string) {
	args, ok := decode[struct {
		Limit int `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}
	limit := clampLimit(args.Limit)

	shelves := b.shelvesSortedByRecency(nil)

	// The shuffle is seeded by the wall-clock hour, so the feed is
	// stable within an hour and rotates on the boundary.
	hour := uint64(b.now().Unix() / 3600)
	rng := rand.New(rand.NewPCG(hour, 0))
	rng.Shuffle(len(shelves), func(i, j int) {
		shelves[i], shelves[j] = shelves[j], shelves[i]
	})

	if len(shelves) > limit {
		shelves = shelves[:limit]
	}
	return shelves, ""
}

func (b *Backend) handleGetStorylineFeed(principal string, body []byte) (any, string) {
	if principal == "" {
		return nil, "unauthorized"
	}
	args, ok := decode[struct {
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
	}](body)
	if !ok {
		return nil, "invalid request body"
	}

	b.mu.Lock()
	var followed []string
	if f := b.follows[principal]; f != nil {
		followed = slices.Clone(f.users)
	}
	b.mu.Unlock()

	shelves := b.shelvesSortedByRecency(func(s *domain.WireShelf) bool {
		return slices.Contains(followed, s.Owner.Principal)
	})
	return pageShelves(shelves, args.Cursor, clampLimit(args.Limit))
}

// editableShelfLocked resolves a shelf and enforces edit rights: the
// owner always, anyone else only when public editing is on.
func (b *Backend) editableShelfLocked(shelfID, principal string) (*domain.WireShelf, string) {
	shelf, ok := b.shelves[shelfID]
	if !ok {
		return nil, "shelf not found"
	}
	if shelf.Owner.Principal == principal && principal != "" {
		return shelf, ""
	}
	if shelf.PublicEditing && principal != "" {
		return shelf, ""
	}
	return nil, "unauthorized"
}

// wouldCycleLocked reports whether nesting child into parent would make
// parent reachable from itself through shelf items.
func (b *Backend) wouldCycleLocked(childID, parentID string) bool {
	if childID == parentID {
		return true
	}
	seen := map[string]bool{}
	stack := []string{childID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == parentID {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		shelf, ok := b.shelves[id]
		if !ok {
			continue
		}
		for _, item := range shelf.Items {
			if sc, isShelf := item.Content.(domain.ShelfContent); isShelf {
				stack = append(stack, sc.ShelfID)
			}
		}
	}
	return false
}

func (b *Backend) shelvesSortedByRecency(keep func(*domain.WireShelf) bool) []domain.WireShelf {
	b.mu.Lock()
	defer b.mu.Unlock()

	shelves := make([]domain.WireShelf, 0, len(b.shelves))
	for _, shelf := range b.shelves {
		if keep == nil || keep(shelf) {
			shelves = append(shelves, *shelf)
		}
	}
	sort.Slice(shelves, func(i, j int) bool {
		if shelves[i].CreatedAt != shelves[j].CreatedAt {
			return shelves[i].CreatedAt > shelves[j].CreatedAt
		}
		return shelves[i].ShelfID < shelves[j].ShelfID
	})
	return shelves
}

// pageShelves cuts one cursor page out of a recency-sorted shelf list.
// The cursor is a (created_at, shelf_id) tuple so resumption lands
// strictly after the last returned row even when timestamps collide.
func pageShelves(shelves []domain.WireShelf, cursor string, limit int) (any, string) {
	start := 0
	if cursor != "" {
		parts, err := api.DecodeCursor(cursor)
		if err != nil || len(parts) != 2 {
			return nil, "invalid cursor"
		}
		lastCreated, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, "invalid cursor"
		}
		lastID := parts[1]
		start = sort.Search(len(shelves), func(i int) bool {
			s := shelves[i]
			if s.CreatedAt != lastCreated {
				return s.CreatedAt < lastCreated
			}
			return s.ShelfID > lastID
		})
	}

	end := min(start+limit, len(shelves))
	page := api.FeedPage{Items: shelves[start:end]}
	if end < len(shelves) {
		last := shelves[end-1]
		page.NextCursor = api.EncodeCursor(strconv.FormatUint(last.CreatedAt, 10), last.ShelfID)
	}
	return page, ""
}

// pageTags cuts one cursor page out of a sorted tag list. The cursor is
// the last tag name of the previous page.
func pageTags(tags []api.TagCount, cursor string, limit int) (any, string) {
	start := 0
	if cursor != "" {
		parts, err := api.DecodeCursor(cursor)
		if err != nil || len(parts) != 1 {
			return nil, "invalid cursor"
		}
		lastTag := parts[0]
		for i, tc := range tags {
			if tc.Tag == lastTag {
				start = i + 1
				break
			}
		}
	}

	end := min(start+limit, len(tags))
	page := api.TagsPage{Items: tags[start:end]}
	if end < len(tags) && end > start {
		page.NextCursor = api.EncodeCursor(tags[end-1].Tag)
	}
	return page, ""
}

// insertPosition places a new item. Without a reference it lands after
// the current maximum; with one it bisects the gap on the requested
// side.
func insertPosition(positions []domain.ItemPosition, itemID uint32, reference *uint32, before bool) []domain.ItemPosition {
	sorted := slices.Clone(positions)
	slices.SortStableFunc(sorted, func(a, b domain.ItemPosition) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		default:
			return 0
		}
	})

	var value float64
	switch {
	case reference == nil:
		if len(sorted) == 0 {
			value = positionGap
		} else {
			value = sorted[len(sorted)-1].Position + positionGap
		}
	default:
		idx := slices.IndexFunc(sorted, func(p domain.ItemPosition) bool { return p.ItemID == *reference })
		if idx == -1 {
			// Missing reference degrades to an append.
			return insertPosition(positions, itemID, nil, false)
		}
		ref := sorted[idx].Position
		if before {
			if idx == 0 {
				value = ref - positionGap
			} else {
				value = (sorted[idx-1].Position + ref) / 2
			}
		} else {
			if idx == len(sorted)-1 {
				value = ref + positionGap
			} else {
				value = (ref + sorted[idx+1].Position) / 2
			}
		}
	}

	return append(positions, domain.ItemPosition{ItemID: itemID, Position: value})
}

func appendUnique(list []string, value string) []string {
	if slices.Contains(list, value) {
		return list
	}
	return append(list, value)
}
