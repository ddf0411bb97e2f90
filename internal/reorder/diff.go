package reorder

// Move is a single relative-move operation: place ID immediately before
// or after Reference.
type Move[ID comparable] struct {
	ID        ID
	Reference ID
	Before    bool
}

// DiffSingleMove compares an edited order against the original and
// derives the one relative move that produced it. The second return is
// false when the sequences are identical (no move needed).
//
// The algorithm finds the first index at which the two sequences
// diverge and classifies the displacement:
//
//   - the item moved toward the front: the edited list shows the moved
//     item at the divergence point, so "place it before the item that
//     originally occupied that index";
//   - the item moved toward the back: everything shifted up by one, so
//     the original occupant of the divergence point is the moved item,
//     and it lands "after the item now immediately preceding its new
//     index".
//
// Only a single displaced element per save cycle is detected; after
// multiple non-adjacent drags the move is derived from the first
// divergence alone. Whole-list changes belong to the bulk
// absolute-order operation instead.
func DiffSingleMove[ID comparable](original, edited []ID) (Move[ID], bool) {
	divergence := -1
	limit := min(len(original), len(edited))
	for i := range limit {
		if original[i] != edited[i] {
			divergence = i
			break
		}
	}
	if divergence == -1 {
		return Move[ID]{}, false
	}

	// Forward move: the original occupant of the divergence index slid
	// one later, meaning it was dragged toward the back.
	if divergence+1 < len(original) && edited[divergence] == original[divergence+1] {
		moved := original[divergence]
		newIndex := indexOf(edited, moved, divergence)
		if newIndex > 0 {
			return Move[ID]{
				ID:        moved,
				Reference: edited[newIndex-1],
				Before:    false,
			}, true
		}
	}

	// Backward move: the moved item jumped to the divergence index from
	// somewhere later; place it before the item it displaced.
	return Move[ID]{
		ID:        edited[divergence],
		Reference: original[divergence],
		Before:    true,
	}, true
}

func indexOf[ID comparable](list []ID, target ID, from int) int {
	for i := from; i < len(list); i++ {
		if list[i] == target {
			return i
		}
	}
	return -1
}
