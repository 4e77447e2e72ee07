package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Focus names the form field that currently owns keyboard input.
type Focus int

const (
	FocusNone Focus = iota
	FocusTitle
	FocusAmount
	FocusNote
)

// Next returns the field reached by the "next" key: title, amount, note, then none.
func (f Focus) Next() Focus {
	switch f {
	case FocusTitle:
		return FocusAmount
	case FocusAmount:
		return FocusNote
	default:
		return FocusNone
	}
}

func (f Focus) String() string {
	switch f {
	case FocusTitle:
		return "title"
	case FocusAmount:
		return "amount"
	case FocusNote:
		return "note"
	default:
		return "none"
	}
}

func (f Focus) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ValidationError carries the field that must regain focus.
type ValidationError struct {
	Field Focus
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field.String() + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Form holds the editable fields of one record. ID is assigned up front so
// that a save retried after a failed commit targets the same record.
type Form struct {
	ID              uuid.UUID `json:"id"`
	Existing        bool      `json:"existing"`
	BoundCategoryID uuid.UUID `json:"bound_category_id"`
	Date            Date      `json:"date"`
	CategoryID      uuid.UUID `json:"category_id"`
	Title           string    `json:"title"`
	AmountText      string    `json:"amount"`
	Note            string    `json:"note"`
	ImageName       string    `json:"image_name"`
}

// NewForm pre-populates a form from existing, or starts a blank one dated today.
func NewForm(existing *Record, today Date) Form {
	if existing == nil {
		return Form{
			ID:   uuid.New(),
			Date: today,
		}
	}
	return Form{
		ID:              existing.ID,
		Existing:        true,
		BoundCategoryID: existing.CategoryID,
		Date:            existing.Date,
		CategoryID:      existing.CategoryID,
		Title:           existing.Title,
		AmountText:      FormatAmountInput(existing.Amount),
		Note:            existing.Note,
		ImageName:       existing.ImageName,
	}
}

// FormatAmountInput renders an amount the way the amount field holds it.
func FormatAmountInput(v int64) string {
	if v <= 0 {
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

// SetAmount stores raw input reduced to its digits.
func (f *Form) SetAmount(raw string) {
	f.AmountText = SanitizeAmount(raw)
}

// Amount returns the parsed amount, 0 when the field does not parse.
func (f Form) Amount() int64 {
	return ParseAmount(f.AmountText)
}

// Validate reports at most one problem; the title is checked first.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return &ValidationError{Field: FocusTitle, Err: ErrTitleRequired}
	}
	if len(f.Title) > maxTitleLength {
		return &ValidationError{Field: FocusTitle, Err: ErrTitleTooLong}
	}
	if SanitizeAmount(f.AmountText) == "" {
		return &ValidationError{Field: FocusAmount, Err: ErrAmountRequired}
	}
	return nil
}

// ResolveCategory picks the selected category, then the previously bound one,
// then the sentinel.
func (f Form) ResolveCategory(sentinel uuid.UUID) uuid.UUID {
	if f.CategoryID != uuid.Nil {
		return f.CategoryID
	}
	if f.Existing && f.BoundCategoryID != uuid.Nil {
		return f.BoundCategoryID
	}
	return sentinel
}

// FocusOf returns the field to refocus for err, FocusNone if err is not a validation error.
func FocusOf(err error) Focus {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return FocusNone
}
