package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
)

// MirrorSource is the store side of the mirror: current records plus the
// bookkeeping of which version reached the mirror.
type MirrorSource interface {
	GetRecord(ctx context.Context, userID string, id uuid.UUID) (core.Record, error)
	GetCategory(ctx context.Context, userID string, id uuid.UUID) (core.Category, error)
	PendingMirrorRecords(ctx context.Context, limit int) ([]core.Record, error)
	MarkMirrored(ctx context.Context, id uuid.UUID, version int64) error
}

// MirrorWorker copies records to an external mirror, driven by ledger events
// and by a periodic sweep for anything an event did not deliver.
type MirrorWorker struct {
	source    MirrorSource
	mirror    ledger.RecordMirror
	batchSize int
}

func NewMirrorWorker(source MirrorSource, mirror ledger.RecordMirror, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleEvent applies one event to the mirror. A returned error asks the
// broker to redeliver.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e ledger.Event) error {
	slog.InfoContext(ctx, "Processing event",
		"kind", e.Kind,
		"record_id", e.RecordID,
		"version", e.Version)

	switch e.Kind {
	case ledger.EventRecordSaved:
		rec, err := w.source.GetRecord(ctx, e.UserID, e.RecordID)
		if errors.Is(err, core.ErrNotFound) {
			slog.InfoContext(ctx, "Record gone before mirroring, skipping", "record_id", e.RecordID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get record from storage: %w", err)
		}
		return w.mirrorRecord(ctx, rec)

	case ledger.EventRecordDeleted:
		if err := w.mirror.DeleteRecord(ctx, e.RecordID); err != nil {
			return fmt.Errorf("delete mirrored record: %w", err)
		}
		return nil

	case ledger.EventCategoryDeleted:
		// Moved records carry a new version and are picked up by the sweep.
		_, err := w.drainPending(ctx)
		return err

	default:
		slog.WarnContext(ctx, "Ignoring unknown event kind", "kind", e.Kind)
		return nil
	}
}

func (w *MirrorWorker) mirrorRecord(ctx context.Context, rec core.Record) error {
	cat, err := w.source.GetCategory(ctx, rec.UserID, rec.CategoryID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("get category: %w", err)
		}
		cat = core.Category{ID: rec.CategoryID, Name: core.SentinelCategoryName}
	}

	if err := w.mirror.UpsertRecord(ctx, rec, cat); err != nil {
		return fmt.Errorf("mirror record: %w", err)
	}

	if err := w.source.MarkMirrored(ctx, rec.ID, rec.Version); err != nil {
		// The row is written; the sweep will rewrite it idempotently.
		slog.ErrorContext(ctx, "Failed to mark record as mirrored", "record_id", rec.ID, "error", err)
	}
	return nil
}

// ProcessPending mirrors one batch of records whose latest version is not
// mirrored yet and returns how many succeeded.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

// drainPending sweeps batch after batch while full batches keep making
// progress. Records that fail every time are left to the reconciler.
func (w *MirrorWorker) drainPending(ctx context.Context) (int, error) {
	total := 0
	for {
		synced, fetched, err := w.sweep(ctx, w.batchSize)
		total += synced
		if err != nil || fetched < w.batchSize || synced == 0 {
			return total, err
		}
	}
}

// StartupSyncCheck runs a larger sweep to recover from worker downtime.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *MirrorWorker) processBatch(ctx context.Context, limit int) (int, error) {
	synced, _, err := w.sweep(ctx, limit)
	return synced, err
}

// sweep mirrors up to limit pending records and reports how many it
// mirrored and how many it fetched.
func (w *MirrorWorker) sweep(ctx context.Context, limit int) (int, int, error) {
	pending, err := w.source.PendingMirrorRecords(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	synced := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return synced, len(pending), ctx.Err()
		}
		if err := w.mirrorRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror record", "record_id", rec.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, len(pending), nil
}

// RunReconciler sweeps pending records every interval until ctx is done.
func (w *MirrorWorker) RunReconciler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}
