package services

import (
	"context"
	"errors"
	"sort"

	"pocket/internal/core"

	"github.com/google/uuid"
)

// EditMode tells whether the category list is browsed or being edited.
type EditMode int

const (
	ModeBrowse EditMode = iota
	ModeSelect
)

func (m EditMode) String() string {
	if m == ModeSelect {
		return "select"
	}
	return "browse"
}

var (
	ErrNotEditing       = errors.New("not in edit mode")
	ErrNotConfirming    = errors.New("no deletion awaiting confirmation")
	ErrConfirmationOpen = errors.New("a deletion is awaiting confirmation")
)

// CategoryDeleter removes categories on behalf of a user.
type CategoryDeleter interface {
	Delete(ctx context.Context, userID string, ids []uuid.UUID) ([]uuid.UUID, error)
}

// CategoryEditor is the edit session of the category list: a browse/select
// mode, the set of categories marked for deletion and a pending confirmation.
// It is not safe for concurrent use.
type CategoryEditor struct {
	deleter        CategoryDeleter
	userID         string
	mode           EditMode
	selected       map[uuid.UUID]struct{}
	pendingConfirm bool
}

func NewCategoryEditor(deleter CategoryDeleter, userID string) *CategoryEditor {
	return &CategoryEditor{
		deleter:  deleter,
		userID:   userID,
		selected: make(map[uuid.UUID]struct{}),
	}
}

func (e *CategoryEditor) Mode() EditMode { return e.mode }

func (e *CategoryEditor) PendingConfirm() bool { return e.pendingConfirm }

func (e *CategoryEditor) IsSelected(id uuid.UUID) bool {
	_, ok := e.selected[id]
	return ok
}

// Selected returns the marked ids in a stable order.
func (e *CategoryEditor) Selected() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(e.selected))
	for id := range e.selected {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ToggleEdit switches between browsing and selecting. Leaving select mode
// drops the selection.
func (e *CategoryEditor) ToggleEdit() {
	if e.mode == ModeBrowse {
		e.mode = ModeSelect
		return
	}
	e.reset()
}

// Toggle marks or unmarks id for deletion.
func (e *CategoryEditor) Toggle(id uuid.UUID) error {
	if e.mode != ModeSelect {
		return ErrNotEditing
	}
	if e.pendingConfirm {
		return ErrConfirmationOpen
	}
	if _, ok := e.selected[id]; ok {
		delete(e.selected, id)
	} else {
		e.selected[id] = struct{}{}
	}
	return nil
}

// RequestDelete asks for confirmation of the current selection.
func (e *CategoryEditor) RequestDelete() error {
	if e.mode != ModeSelect {
		return ErrNotEditing
	}
	if len(e.selected) == 0 {
		return core.ErrNothingSelected
	}
	e.pendingConfirm = true
	return nil
}

// Cancel closes the confirmation, or leaves select mode when none is open.
func (e *CategoryEditor) Cancel() {
	if e.pendingConfirm {
		e.pendingConfirm = false
		return
	}
	if e.mode == ModeSelect {
		e.reset()
	}
}

// Confirm deletes the selection and returns to browsing. The session is
// reset even when some ids could not be deleted.
func (e *CategoryEditor) Confirm(ctx context.Context) ([]uuid.UUID, error) {
	if !e.pendingConfirm {
		return nil, ErrNotConfirming
	}
	deleted, err := e.deleter.Delete(ctx, e.userID, e.Selected())
	e.reset()
	return deleted, err
}

func (e *CategoryEditor) reset() {
	e.mode = ModeBrowse
	e.pendingConfirm = false
	clear(e.selected)
}
