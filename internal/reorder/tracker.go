// Package reorder implements the drag-and-drop reorder lifecycle for an
// ordered list of identifiers. A Tracker walks a list through three
// phases (viewing, editing, saving), maintains a working copy during
// edits, and on save derives the minimal relative move to commit.
package reorder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Phase is the lifecycle state of a Tracker.
type Phase int

const (
	PhaseViewing Phase = iota
	PhaseEditing
	PhaseSaving
)

func (p Phase) String() string {
	switch p {
	case PhaseViewing:
		return "viewing"
	case PhaseEditing:
		return "editing"
	case PhaseSaving:
		return "saving"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CommitFunc persists a single relative move. It is typically backed by
// a service call that issues the move to the backend.
type CommitFunc[ID comparable] func(ctx context.Context, move Move[ID]) error

// Tracker manages one reorderable list. All methods are safe for
// concurrent use, though a single UI surface normally drives it from
// one goroutine.
type Tracker[ID comparable] struct {
	mu        sync.Mutex
	phase     Phase
	original  []ID
	working   []ID
	dragIndex int
	logger    *slog.Logger
}

// New returns a Tracker in the viewing phase.
func New[ID comparable](logger *slog.Logger) *Tracker[ID] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker[ID]{
		phase:     PhaseViewing,
		dragIndex: -1,
		logger:    logger,
	}
}

// Phase reports the current lifecycle phase.
func (t *Tracker[ID]) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Working returns a copy of the current working order. During viewing
// it returns nil.
func (t *Tracker[ID]) Working() []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.working)
}

// EnterEdit snapshots the given order and switches to the editing
// phase. It fails unless the tracker is currently viewing.
func (t *Tracker[ID]) EnterEdit(order []ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseViewing {
		return fmt.Errorf("enter edit: tracker is %s", t.phase)
	}
	t.original = slices.Clone(order)
	t.working = slices.Clone(order)
	t.phase = PhaseEditing
	t.dragIndex = -1
	return nil
}

// DragStart marks the item at index i as the one being dragged.
func (t *Tracker[ID]) DragStart(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseEditing {
		return fmt.Errorf("drag start: tracker is %s", t.phase)
	}
	if i < 0 || i >= len(t.working) {
		return fmt.Errorf("drag start: index %d out of range", i)
	}
	t.dragIndex = i
	return nil
}

// DragOver moves the dragged item to index i within the working copy,
// giving live visual feedback before the drop.
func (t *Tracker[ID]) DragOver(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseEditing || t.dragIndex < 0 {
		return fmt.Errorf("drag over: no active drag")
	}
	if i < 0 || i >= len(t.working) {
		return fmt.Errorf("drag over: index %d out of range", i)
	}
	if i == t.dragIndex {
		return nil
	}
	moved := t.working[t.dragIndex]
	t.working = slices.Delete(t.working, t.dragIndex, t.dragIndex+1)
	t.working = slices.Insert(t.working, i, moved)
	t.dragIndex = i
	return nil
}

// Drop finalizes the drag at index i.
func (t *Tracker[ID]) Drop(i int) error {
	if err := t.DragOver(i); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dragIndex = -1
	return nil
}

// DragEnd abandons an in-flight drag without committing its position
// beyond what DragOver already applied.
func (t *Tracker[ID]) DragEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dragIndex = -1
}

// Cancel discards the working copy and returns to viewing. Calling it
// while saving is rejected so the in-flight commit stays coherent.
func (t *Tracker[ID]) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == PhaseSaving {
		return fmt.Errorf("cancel: save in progress")
	}
	t.phase = PhaseViewing
	t.original = nil
	t.working = nil
	t.dragIndex = -1
	return nil
}

// Save derives the single move that transforms the original order into
// the working copy and hands it to commit. When the two orders are
// identical it returns to viewing without calling commit at all.
//
// On commit failure the tracker drops back to editing with the working
// copy intact, so the user can retry or cancel.
func (t *Tracker[ID]) Save(ctx context.Context, commit CommitFunc[ID]) error {
	t.mu.Lock()
	if t.phase != PhaseEditing {
		t.mu.Unlock()
		return fmt.Errorf("save: tracker is %s", t.phase)
	}
	if slices.Equal(t.original, t.working) {
		t.phase = PhaseViewing
		t.original = nil
		t.working = nil
		t.dragIndex = -1
		t.mu.Unlock()
		return nil
	}
	move, ok := DiffSingleMove(t.original, t.working)
	if !ok {
		// Unreachable given the equality check above, but stay safe.
		t.phase = PhaseViewing
		t.mu.Unlock()
		return nil
	}
	t.phase = PhaseSaving
	t.dragIndex = -1
	t.mu.Unlock()

	err := commit(ctx, move)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.logger.Warn("reorder commit failed, keeping edit state", "error", err)
		t.phase = PhaseEditing
		return err
	}
	t.phase = PhaseViewing
	t.original = nil
	t.working = nil
	return nil
}
