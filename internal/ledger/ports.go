package ledger

import (
	"context"
	"time"

	"pocket/internal/core"

	"github.com/google/uuid"
)

// Ports for storage and outbound adapters.
type (
	CategoryStore interface {
		// ListCategories returns every category of userID, sentinel included, in no particular order.
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		GetCategory(ctx context.Context, userID string, id uuid.UUID) (core.Category, error)
		// SentinelCategory returns the fallback category of userID, creating it if missing.
		SentinelCategory(ctx context.Context, userID string) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, c core.Category) error
		// DeleteCategory removes the category and moves its records to the sentinel
		// in one transaction. It returns the number of records moved.
		DeleteCategory(ctx context.Context, userID string, id uuid.UUID) (int, error)
	}

	RecordStore interface {
		GetRecord(ctx context.Context, userID string, id uuid.UUID) (core.Record, error)
		InsertRecord(ctx context.Context, r core.Record) error
		UpdateRecord(ctx context.Context, r core.Record) error
		DeleteRecord(ctx context.Context, userID string, id uuid.UUID) error
		// ListRecords returns records dated in [from, to), newest first.
		ListRecords(ctx context.Context, userID string, from, to core.Date) ([]core.Record, error)
	}

	Store interface {
		CategoryStore
		RecordStore
	}

	// EventPublisher announces committed changes to other processes.
	EventPublisher interface {
		Publish(ctx context.Context, e Event) error
		Close() error
	}

	// RecordMirror keeps an external copy of records, such as a spreadsheet.
	RecordMirror interface {
		UpsertRecord(ctx context.Context, r core.Record, category core.Category) error
		DeleteRecord(ctx context.Context, id uuid.UUID) error
	}
)

type EventKind string

const (
	EventRecordSaved     EventKind = "record.saved"
	EventRecordDeleted   EventKind = "record.deleted"
	EventCategoryDeleted EventKind = "category.deleted"
)

// Event is a lightweight change notification. Consumers fetch the current
// state from the store by ID.
type Event struct {
	Kind       EventKind `json:"kind"`
	UserID     string    `json:"user_id"`
	RecordID   uuid.UUID `json:"record_id,omitempty"`
	CategoryID uuid.UUID `json:"category_id,omitempty"`
	Version    int64     `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, userID string) Event {
	return Event{Kind: kind, UserID: userID, Timestamp: time.Now().UTC()}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MonthRange returns the [from, to) bounds of a calendar month.
func MonthRange(year, month int) (core.Date, core.Date) {
	from := core.NewDate(year, month, 1)
	return from, core.Date{Time: from.AddDate(0, 1, 0)}
}
