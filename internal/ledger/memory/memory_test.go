package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
)

func newRecord(userID string, cat uuid.UUID, day int) core.Record {
	return core.Record{
		ID:         uuid.New(),
		UserID:     userID,
		Date:       core.NewDate(2025, 5, day),
		Title:      "t",
		Amount:     100,
		CategoryID: cat,
	}
}

func TestDeleteCategoryMovesRecordsToSentinel(t *testing.T) {
	ctx := context.Background()
	s := New(core.SampleCategories("u"))
	cats, _ := s.ListCategories(ctx, "u")
	var food core.Category
	for _, c := range cats {
		if c.Name == "food" {
			food = c
		}
	}
	rec := newRecord("u", food.ID, 3)
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	moved, err := s.DeleteCategory(ctx, "u", food.ID)
	if err != nil || moved != 1 {
		t.Fatalf("delete: moved=%d err=%v", moved, err)
	}
	sentinel, _ := s.SentinelCategory(ctx, "u")
	got, _ := s.GetRecord(ctx, "u", rec.ID)
	if got.CategoryID != sentinel.ID {
		t.Fatalf("record not moved to sentinel: %v", got.CategoryID)
	}
	if _, err := s.GetCategory(ctx, "u", food.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("category should be gone, got %v", err)
	}
	if _, err := s.DeleteCategory(ctx, "u", sentinel.ID); !errors.Is(err, core.ErrSentinelCategory) {
		t.Fatalf("sentinel must not be deletable, got %v", err)
	}
}

func TestDeleteCategoryOtherUser(t *testing.T) {
	ctx := context.Background()
	s := New(append(core.SampleCategories("a"), core.SampleCategories("b")...))
	bCats, _ := s.ListCategories(ctx, "b")
	if _, err := s.DeleteCategory(ctx, "a", bCats[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign category, got %v", err)
	}
	after, _ := s.ListCategories(ctx, "b")
	if len(after) != len(bCats) {
		t.Fatalf("foreign category removed")
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	c := core.Category{ID: uuid.New(), UserID: "u", Name: "food", Color: "#FFFFFF"}
	if err := s.CreateCategory(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := c
	dup.ID = uuid.New()
	if err := s.CreateCategory(ctx, dup); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	dup.UserID = "other"
	if err := s.CreateCategory(ctx, dup); err != nil {
		t.Fatalf("same name for another user should be fine: %v", err)
	}
}

func TestListRecordsMonthWindow(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	sentinel, _ := s.SentinelCategory(ctx, "u")
	for _, d := range []core.Date{core.NewDate(2025, 4, 30), core.NewDate(2025, 5, 1), core.NewDate(2025, 5, 31), core.NewDate(2025, 6, 1)} {
		r := newRecord("u", sentinel.ID, 1)
		r.Date = d
		if err := s.InsertRecord(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	from, to := ledger.MonthRange(2025, 5)
	got, err := s.ListRecords(ctx, "u", from, to)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 records in May, got %d (err=%v)", len(got), err)
	}
	if got[0].Date.Day() != 31 {
		t.Fatalf("expected newest first, got %s", got[0].Date)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// No files -> sample set
	s := NewFromFiles(dir, "u")
	cats, _ := s.ListCategories(ctx, "u")
	if len(cats) != 11 {
		t.Fatalf("expected sample categories when file missing, got %d", len(cats))
	}

	content := "# header\nfood,#ffb871,🍙\nfood,#000000\nbus\n\nbad,red\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir, "u")
	cats, _ = s.ListCategories(ctx, "u")
	names := map[string]core.Category{}
	for _, c := range cats {
		names[c.Name] = c
	}
	if len(cats) != 3 {
		t.Fatalf("expected food, bus and sentinel, got %v", names)
	}
	if names["food"].Color != "#FFB871" || names["food"].Emoji != "🍙" {
		t.Fatalf("unexpected food seed: %+v", names["food"])
	}
	if _, ok := names[core.SentinelCategoryName]; !ok {
		t.Fatalf("sentinel missing")
	}
}
