package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SentinelCategoryName is the name of the per-user fallback category.
// Records whose category is deleted are moved here.
const SentinelCategoryName = "uncategorized"

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#EBEBF0"

const maxTitleLength = 200

type (
	Date struct {
		time.Time
	}

	Category struct {
		ID     uuid.UUID `json:"id"`
		UserID string    `json:"user_id"`
		Name   string    `json:"name"`
		Color  string    `json:"color"`
		Emoji  string    `json:"emoji"`
	}

	// Record is a single spending entry.
	Record struct {
		ID         uuid.UUID `json:"id"`
		UserID     string    `json:"user_id"`
		Date       Date      `json:"date"`
		Title      string    `json:"title"`
		Amount     int64     `json:"amount"`
		Note       string    `json:"note,omitempty"`
		ImageName  string    `json:"image_name,omitempty"`
		CategoryID uuid.UUID `json:"category_id"`
		Version    int64     `json:"version"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}
)

var (
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleTooLong      = errors.New("title too long (max 200 characters)")
	ErrAmountRequired    = errors.New("amount is required")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrNoCategory        = errors.New("record has no category")
	ErrNoOwner           = errors.New("missing owner")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrReservedName      = errors.New("category name is reserved")
	ErrInvalidColor      = errors.New("invalid color, expected #RRGGBB")
	ErrSentinelCategory  = errors.New("the uncategorized category cannot be changed")
	ErrDuplicateCategory = errors.New("category name already exists")
	ErrUnknownCategory   = errors.New("category is not among the candidates")
	ErrNothingSelected   = errors.New("no category selected")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrCommitFailed      = errors.New("commit failed")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping the wall-clock date of t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsSentinel reports whether c is the fallback category of its owner.
func (c Category) IsSentinel() bool {
	return c.Name == SentinelCategoryName
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrNoOwner
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if name == SentinelCategoryName {
		return ErrReservedName
	}
	if !ValidColor(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

// NewSentinelCategory builds the fallback category for userID.
func NewSentinelCategory(userID string) Category {
	return Category{
		ID:     uuid.New(),
		UserID: userID,
		Name:   SentinelCategoryName,
		Color:  DefaultCategoryColor,
		Emoji:  "❓",
	}
}

// ValidColor reports whether s is a #RRGGBB hex color.
func ValidColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeColor upper-cases a valid color and substitutes the default for an empty one.
func NormalizeColor(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultCategoryColor
	}
	return strings.ToUpper(s)
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrNoOwner
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	if len(r.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if r.Amount < 0 {
		return ErrInvalidAmount
	}
	if r.CategoryID == uuid.Nil {
		return ErrNoCategory
	}
	return nil
}
