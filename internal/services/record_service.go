package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
)

// PhotoStore keeps the image files attached to records, per user.
type PhotoStore interface {
	// Save processes the raw image and returns the stored file name.
	Save(ctx context.Context, userID string, data []byte) (string, error)
	Exists(userID, name string) bool
	Remove(userID, name string) error
}

// RecordService orchestrates spending records across the store, the photo
// directory and the event bus.
type RecordService struct {
	store  ledger.Store
	events ledger.EventPublisher
	photos PhotoStore
	now    func() time.Time
}

func NewRecordService(store ledger.Store, events ledger.EventPublisher, photos PhotoStore) *RecordService {
	if events == nil {
		events = ledger.NopPublisher{}
	}
	return &RecordService{
		store:  store,
		events: events,
		photos: photos,
		now:    time.Now,
	}
}

// NewForm returns a blank form dated today.
func (s *RecordService) NewForm() core.Form {
	return core.NewForm(nil, core.DateOf(s.now()))
}

// EditForm returns a form pre-populated from the user's record id.
func (s *RecordService) EditForm(ctx context.Context, userID string, id uuid.UUID) (core.Form, error) {
	rec, err := s.store.GetRecord(ctx, userID, id)
	if err != nil {
		return core.Form{}, err
	}
	return core.NewForm(&rec, core.DateOf(s.now())), nil
}

func (s *RecordService) Get(ctx context.Context, userID string, id uuid.UUID) (core.Record, error) {
	return s.store.GetRecord(ctx, userID, id)
}

// List returns the user's records of a calendar month, newest first.
func (s *RecordService) List(ctx context.Context, userID string, year, month int) ([]core.Record, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d: %w", month, core.ErrInvalidDate)
	}
	from, to := ledger.MonthRange(year, month)
	return s.store.ListRecords(ctx, userID, from, to)
}

// Save validates the form and writes it. A form bound to an existing record
// updates that record in place; otherwise a new record with the form's ID is
// created, and a retried save of the same form updates it instead.
func (s *RecordService) Save(ctx context.Context, userID string, f core.Form) (core.Record, error) {
	if err := f.Validate(); err != nil {
		return core.Record{}, err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.ImageName != "" && (s.photos == nil || !s.photos.Exists(userID, f.ImageName)) {
		slog.WarnContext(ctx, "Dropping image the user never uploaded", "user_id", userID, "record_id", f.ID, "image", f.ImageName)
		f.ImageName = ""
	}

	existing, err := s.store.GetRecord(ctx, userID, f.ID)
	switch {
	case err == nil:
		return s.update(ctx, userID, existing, f)
	case !errors.Is(err, core.ErrNotFound):
		return core.Record{}, s.commitFailed(ctx, f.ID, err)
	case f.Existing:
		return core.Record{}, err
	}

	rec, err := s.create(ctx, userID, f)
	if errors.Is(err, core.ErrAlreadyExists) {
		// Lost a race with a concurrent retry of the same form.
		if existing, err = s.store.GetRecord(ctx, userID, f.ID); err == nil {
			return s.update(ctx, userID, existing, f)
		}
	}
	return rec, err
}

func (s *RecordService) create(ctx context.Context, userID string, f core.Form) (core.Record, error) {
	catID, err := s.resolveCategory(ctx, userID, f)
	if err != nil {
		return core.Record{}, err
	}

	now := s.now().UTC()
	rec := core.Record{
		ID:         f.ID,
		UserID:     userID,
		Date:       formDate(f, now),
		Title:      f.Title,
		Amount:     f.Amount(),
		Note:       f.Note,
		ImageName:  f.ImageName,
		CategoryID: catID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) || errors.Is(err, core.ErrNotFound) {
			return core.Record{}, err
		}
		return core.Record{}, s.commitFailed(ctx, rec.ID, err)
	}

	slog.InfoContext(ctx, "Record created", "user_id", userID, "record_id", rec.ID, "amount", rec.Amount, "category_id", rec.CategoryID)
	s.publishSaved(ctx, rec)
	return rec, nil
}

func (s *RecordService) update(ctx context.Context, userID string, rec core.Record, f core.Form) (core.Record, error) {
	previousImage := rec.ImageName
	if f.CategoryID != uuid.Nil {
		rec.CategoryID = f.CategoryID
	}
	rec.Date = formDate(f, s.now())
	rec.Title = f.Title
	rec.Amount = f.Amount()
	rec.Note = f.Note
	rec.ImageName = f.ImageName
	rec.Version++
	rec.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Record{}, err
		}
		return core.Record{}, s.commitFailed(ctx, rec.ID, err)
	}

	if previousImage != "" && previousImage != rec.ImageName {
		s.removePhoto(ctx, userID, rec.ID, previousImage)
	}

	slog.InfoContext(ctx, "Record updated", "user_id", userID, "record_id", rec.ID, "version", rec.Version)
	s.publishSaved(ctx, rec)
	return rec, nil
}

func (s *RecordService) resolveCategory(ctx context.Context, userID string, f core.Form) (uuid.UUID, error) {
	if id := f.ResolveCategory(uuid.Nil); id != uuid.Nil {
		return id, nil
	}
	sentinel, err := s.store.SentinelCategory(ctx, userID)
	if err != nil {
		return uuid.Nil, s.commitFailed(ctx, f.ID, err)
	}
	return sentinel.ID, nil
}

func (s *RecordService) commitFailed(ctx context.Context, id uuid.UUID, err error) error {
	slog.ErrorContext(ctx, "Record commit failed", "record_id", id, "error", err)
	return fmt.Errorf("save record %s: %w: %w", id, core.ErrCommitFailed, err)
}

func formDate(f core.Form, now time.Time) core.Date {
	if f.Date.IsZero() {
		return core.DateOf(now)
	}
	return core.DateOf(f.Date.Time)
}

// Delete removes the record and, best effort, its photo.
func (s *RecordService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	rec, err := s.store.GetRecord(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRecord(ctx, userID, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if rec.ImageName != "" {
		s.removePhoto(ctx, userID, id, rec.ImageName)
	}

	slog.InfoContext(ctx, "Record deleted", "user_id", userID, "record_id", id)
	e := ledger.NewEvent(ledger.EventRecordDeleted, userID)
	e.RecordID = id
	if err := s.events.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event", "record_id", id, "error", err)
	}
	return nil
}

func (s *RecordService) removePhoto(ctx context.Context, userID string, id uuid.UUID, name string) {
	if s.photos == nil {
		return
	}
	if err := s.photos.Remove(userID, name); err != nil {
		slog.WarnContext(ctx, "Failed to remove record photo", "record_id", id, "image", name, "error", err)
	}
}

// AttachPhoto stores data as the form's image in userID's photos. Any
// failure leaves the form without an image and is only logged.
func (s *RecordService) AttachPhoto(ctx context.Context, userID string, f *core.Form, data []byte) {
	if s.photos == nil {
		slog.WarnContext(ctx, "Photo storage not configured, dropping image")
		f.ImageName = ""
		return
	}
	name, err := s.photos.Save(ctx, userID, data)
	if err != nil {
		slog.WarnContext(ctx, "Failed to store photo", "record_id", f.ID, "error", err)
		f.ImageName = ""
		return
	}
	f.ImageName = name
}

// MonthSummary totals the user's records of a month, overall and per category.
func (s *RecordService) MonthSummary(ctx context.Context, userID string, year, month int) (core.MonthSummary, error) {
	records, err := s.List(ctx, userID, year, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("list categories: %w", err)
	}
	return Summarize(year, month, records, cats), nil
}

// Summarize aggregates records by category, largest amount first.
func Summarize(year, month int, records []core.Record, cats []core.Category) core.MonthSummary {
	byID := make(map[uuid.UUID]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	sum := core.MonthSummary{Year: year, Month: month}
	totals := make(map[uuid.UUID]int64)
	for _, r := range records {
		sum.Total += r.Amount
		totals[r.CategoryID] += r.Amount
	}
	for id, amount := range totals {
		c := byID[id]
		sum.ByCategory = append(sum.ByCategory, core.CategoryTotal{
			CategoryID: id,
			Name:       c.Name,
			Emoji:      c.Emoji,
			Amount:     amount,
		})
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		a, b := sum.ByCategory[i], sum.ByCategory[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Name < b.Name
	})
	return sum
}

func (s *RecordService) publishSaved(ctx context.Context, rec core.Record) {
	e := ledger.NewEvent(ledger.EventRecordSaved, rec.UserID)
	e.RecordID = rec.ID
	e.CategoryID = rec.CategoryID
	e.Version = rec.Version
	if err := s.events.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event", "record_id", rec.ID, "error", err)
	}
}
