package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
)

type fakeSource struct {
	mu         sync.Mutex
	records    map[uuid.UUID]core.Record
	categories map[uuid.UUID]core.Category
	mirrored   map[uuid.UUID]int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records:    map[uuid.UUID]core.Record{},
		categories: map[uuid.UUID]core.Category{},
		mirrored:   map[uuid.UUID]int64{},
	}
}

func (s *fakeSource) GetRecord(_ context.Context, userID string, id uuid.UUID) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.UserID != userID {
		return core.Record{}, core.ErrNotFound
	}
	return r, nil
}

func (s *fakeSource) GetCategory(_ context.Context, _ string, id uuid.UUID) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *fakeSource) PendingMirrorRecords(_ context.Context, limit int) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, r := range s.records {
		if s.mirrored[r.ID] < r.Version && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSource) MarkMirrored(_ context.Context, id uuid.UUID, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirrored[id] < version {
		s.mirrored[id] = version
	}
	return nil
}

type fakeMirror struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]string
	failing bool
}

func (m *fakeMirror) UpsertRecord(_ context.Context, r core.Record, c core.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("sheets unavailable")
	}
	m.rows[r.ID] = r.Title + "/" + c.Name
	return nil
}

func (m *fakeMirror) DeleteRecord(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func seed(src *fakeSource, title string) core.Record {
	cat := core.Category{ID: uuid.New(), UserID: "alice", Name: "food"}
	src.categories[cat.ID] = cat
	r := core.Record{ID: uuid.New(), UserID: "alice", Title: title, CategoryID: cat.ID, Version: 1}
	src.records[r.ID] = r
	return r
}

func savedEvent(r core.Record) ledger.Event {
	e := ledger.NewEvent(ledger.EventRecordSaved, r.UserID)
	e.RecordID = r.ID
	e.Version = r.Version
	return e
}

func TestMirrorWorker_HandleSaved(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}}
	w := NewMirrorWorker(src, mirror, 10)

	rec := seed(src, "Coffee")
	if err := w.HandleEvent(context.Background(), savedEvent(rec)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if got := mirror.rows[rec.ID]; got != "Coffee/food" {
		t.Errorf("mirrored row = %q, want Coffee/food", got)
	}
	if src.mirrored[rec.ID] != 1 {
		t.Errorf("mirrored version = %d, want 1", src.mirrored[rec.ID])
	}
}

func TestMirrorWorker_HandleSavedMissingRecord(t *testing.T) {
	w := NewMirrorWorker(newFakeSource(), &fakeMirror{rows: map[uuid.UUID]string{}}, 10)

	e := ledger.NewEvent(ledger.EventRecordSaved, "alice")
	e.RecordID = uuid.New()
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Errorf("HandleEvent() for a vanished record should not fail, got %v", err)
	}
}

func TestMirrorWorker_HandleSavedMirrorFailure(t *testing.T) {
	src := newFakeSource()
	w := NewMirrorWorker(src, &fakeMirror{rows: map[uuid.UUID]string{}, failing: true}, 10)

	rec := seed(src, "Coffee")
	if err := w.HandleEvent(context.Background(), savedEvent(rec)); err == nil {
		t.Fatal("HandleEvent() should fail so the event is redelivered")
	}
	if src.mirrored[rec.ID] != 0 {
		t.Error("record must stay pending after a failed mirror write")
	}
}

func TestMirrorWorker_HandleDeleted(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}}
	w := NewMirrorWorker(src, mirror, 10)

	rec := seed(src, "Coffee")
	_ = w.HandleEvent(context.Background(), savedEvent(rec))

	e := ledger.NewEvent(ledger.EventRecordDeleted, "alice")
	e.RecordID = rec.ID
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if _, ok := mirror.rows[rec.ID]; ok {
		t.Error("row should be removed from the mirror")
	}
}

func TestMirrorWorker_CategoryDeletedSweepsMovedRecords(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}}
	w := NewMirrorWorker(src, mirror, 10)

	rec := seed(src, "Coffee")
	_ = w.HandleEvent(context.Background(), savedEvent(rec))

	sentinel := core.NewSentinelCategory("alice")
	src.categories[sentinel.ID] = sentinel
	rec.CategoryID = sentinel.ID
	rec.Version = 2
	src.records[rec.ID] = rec

	e := ledger.NewEvent(ledger.EventCategoryDeleted, "alice")
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if got := mirror.rows[rec.ID]; got != "Coffee/"+core.SentinelCategoryName {
		t.Errorf("mirrored row = %q", got)
	}
}

func TestMirrorWorker_CategoryDeletedDrainsEveryBatch(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}}
	w := NewMirrorWorker(src, mirror, 2)

	for i := 0; i < 7; i++ {
		seed(src, fmt.Sprintf("moved-%d", i))
	}

	e := ledger.NewEvent(ledger.EventCategoryDeleted, "alice")
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(mirror.rows) != 7 {
		t.Errorf("mirrored %d records, want all 7", len(mirror.rows))
	}
}

func TestMirrorWorker_CategoryDeletedStopsWithoutProgress(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}, failing: true}
	w := NewMirrorWorker(src, mirror, 2)

	for i := 0; i < 4; i++ {
		seed(src, fmt.Sprintf("stuck-%d", i))
	}

	done := make(chan error, 1)
	go func() {
		done <- w.HandleEvent(context.Background(), ledger.NewEvent(ledger.EventCategoryDeleted, "alice"))
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("HandleEvent() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweep kept looping over records that never mirror")
	}
}

func TestMirrorWorker_StartupSyncCheck(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}}
	w := NewMirrorWorker(src, mirror, 1)

	for _, title := range []string{"a", "b", "c"} {
		seed(src, title)
	}
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if len(mirror.rows) != 3 {
		t.Errorf("mirrored %d records, want 3", len(mirror.rows))
	}

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 0 {
		t.Errorf("ProcessPending() = %d, %v; want nothing left", n, err)
	}
}

func TestMirrorWorker_RunReconcilerStops(t *testing.T) {
	src := newFakeSource()
	mirror := &fakeMirror{rows: map[uuid.UUID]string{}}
	w := NewMirrorWorker(src, mirror, 10)
	seed(src, "Coffee")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.RunReconciler(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for {
		mirror.mu.Lock()
		n := len(mirror.rows)
		mirror.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reconciler did not mirror the pending record")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("RunReconciler() error = %v", err)
	}
}
