package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.queries.ListCategoriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		c, err := categoryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID string, id uuid.UUID) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id.String(), userID)
	if err != nil {
		return core.Category{}, notFound(err, "category", id)
	}
	return categoryFromRow(row)
}

func (r *SQLiteRepository) SentinelCategory(ctx context.Context, userID string) (core.Category, error) {
	return sentinel(ctx, r.queries, userID)
}

func sentinel(ctx context.Context, q *Queries, userID string) (core.Category, error) {
	row, err := q.GetCategoryByName(ctx, userID, core.SentinelCategoryName)
	if err == nil {
		return categoryFromRow(row)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("get sentinel category: %w", err)
	}

	c := core.NewSentinelCategory(userID)
	if err := q.CreateCategory(ctx, categoryToRow(c)); err != nil {
		if !isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("create sentinel category: %w", err)
		}
		// Created concurrently; read the winner.
		row, err = q.GetCategoryByName(ctx, userID, core.SentinelCategoryName)
		if err != nil {
			return core.Category{}, fmt.Errorf("get sentinel category: %w", err)
		}
		return categoryFromRow(row)
	}
	slog.InfoContext(ctx, "Sentinel category created", "user_id", userID, "category_id", c.ID)
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	if err := r.queries.CreateCategory(ctx, categoryToRow(c)); err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "categories.id") {
				return fmt.Errorf("category %s: %w", c.ID, core.ErrAlreadyExists)
			}
			return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	return r.inTx(ctx, func(q *Queries) error {
		old, err := q.GetCategory(ctx, c.ID.String(), c.UserID)
		if err != nil {
			return notFound(err, "category", c.ID)
		}
		if old.Name == core.SentinelCategoryName {
			return core.ErrSentinelCategory
		}
		if _, err := q.UpdateCategory(ctx, categoryToRow(c)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
			}
			return fmt.Errorf("update category: %w", err)
		}
		return nil
	})
}

// DeleteCategory moves the category's records to the sentinel and removes
// the category in a single transaction.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID string, id uuid.UUID) (int, error) {
	var moved int64
	err := r.inTx(ctx, func(q *Queries) error {
		old, err := q.GetCategory(ctx, id.String(), userID)
		if err != nil {
			return notFound(err, "category", id)
		}
		if old.Name == core.SentinelCategoryName {
			return core.ErrSentinelCategory
		}
		fallback, err := sentinel(ctx, q, userID)
		if err != nil {
			return err
		}
		moved, err = q.ReassignRecords(ctx, fallback.ID.String(), formatTime(time.Now()), id.String(), userID)
		if err != nil {
			return fmt.Errorf("reassign records: %w", err)
		}
		if _, err := q.DeleteCategory(ctx, id.String(), userID); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Category deleted", "user_id", userID, "category_id", id, "records_moved", moved)
	return int(moved), nil
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, userID string, id uuid.UUID) (core.Record, error) {
	row, err := r.queries.GetRecord(ctx, id.String(), userID)
	if err != nil {
		return core.Record{}, notFound(err, "record", id)
	}
	return recordFromRow(row)
}

func (r *SQLiteRepository) InsertRecord(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetCategory(ctx, rec.CategoryID.String(), rec.UserID); err != nil {
			return notFound(err, "category", rec.CategoryID)
		}
		if err := q.CreateRecord(ctx, recordToRow(rec)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("record %s: %w", rec.ID, core.ErrAlreadyExists)
			}
			return fmt.Errorf("create record: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetCategory(ctx, rec.CategoryID.String(), rec.UserID); err != nil {
			return notFound(err, "category", rec.CategoryID)
		}
		n, err := q.UpdateRecord(ctx, recordToRow(rec))
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("record %s: %w", rec.ID, core.ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, userID string, id uuid.UUID) error {
	n, err := r.queries.DeleteRecord(ctx, id.String(), userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, userID string, from, to core.Date) ([]core.Record, error) {
	rows, err := r.queries.ListRecordsBetween(ctx, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recordsFromRows(rows)
}

// PendingMirrorRecords returns records whose latest version has not reached the mirror yet.
func (r *SQLiteRepository) PendingMirrorRecords(ctx context.Context, limit int) ([]core.Record, error) {
	rows, err := r.queries.GetPendingMirrorRecords(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending mirror records: %w", err)
	}
	return recordsFromRows(rows)
}

// MarkMirrored records that version of the record has been mirrored.
// Older versions never overwrite a newer mark.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id uuid.UUID, version int64) error {
	if err := r.queries.MarkRecordMirrored(ctx, id.String(), version); err != nil {
		return fmt.Errorf("mark record mirrored: %w", err)
	}
	slog.DebugContext(ctx, "Record marked as mirrored", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", kind, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func categoryToRow(c core.Category) Category {
	return Category{
		ID:        c.ID.String(),
		UserID:    c.UserID,
		Name:      c.Name,
		Color:     c.Color,
		Emoji:     c.Emoji,
		CreatedAt: formatTime(time.Now()),
	}
}

func categoryFromRow(row Category) (core.Category, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category id %q: %w", row.ID, err)
	}
	return core.Category{
		ID:     id,
		UserID: row.UserID,
		Name:   row.Name,
		Color:  row.Color,
		Emoji:  row.Emoji,
	}, nil
}

func recordToRow(r core.Record) Record {
	return Record{
		ID:         r.ID.String(),
		UserID:     r.UserID,
		Day:        r.Date.String(),
		Title:      r.Title,
		Amount:     r.Amount,
		Note:       r.Note,
		ImageName:  r.ImageName,
		CategoryID: r.CategoryID.String(),
		Version:    r.Version,
		CreatedAt:  formatTime(r.CreatedAt),
		UpdatedAt:  formatTime(r.UpdatedAt),
	}
}

func recordFromRow(row Record) (core.Record, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse record id %q: %w", row.ID, err)
	}
	catID, err := uuid.Parse(row.CategoryID)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse category id %q: %w", row.CategoryID, err)
	}
	day, err := core.ParseDate(row.Day)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse day %q: %w", row.Day, err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return core.Record{
		ID:         id,
		UserID:     row.UserID,
		Date:       day,
		Title:      row.Title,
		Amount:     row.Amount,
		Note:       row.Note,
		ImageName:  row.ImageName,
		CategoryID: catID,
		Version:    row.Version,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func recordsFromRows(rows []Record) ([]core.Record, error) {
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
