package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Category is a row of the categories table.
type Category struct {
	ID        string
	UserID    string
	Name      string
	Color     string
	Emoji     string
	CreatedAt string
}

// Record is a row of the records table.
type Record struct {
	ID              string
	UserID          string
	Day             string
	Title           string
	Amount          int64
	Note            string
	ImageName       string
	CategoryID      string
	Version         int64
	MirroredVersion int64
	CreatedAt       string
	UpdatedAt       string
}

const categoryColumns = `id, user_id, name, color, emoji, created_at`

const recordColumns = `id, user_id, day, title, amount, note, image_name, category_id, version, mirrored_version, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Emoji, &c.CreatedAt)
	return c, err
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.UserID, &r.Day, &r.Title, &r.Amount, &r.Note, &r.ImageName,
		&r.CategoryID, &r.Version, &r.MirroredVersion, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const listCategoriesByUser = `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ? ORDER BY name`

func (q *Queries) ListCategoriesByUser(ctx context.Context, userID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategoriesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ? AND user_id = ?`

func (q *Queries) GetCategory(ctx context.Context, id, userID string) (Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, id, userID))
}

const getCategoryByName = `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ? AND name = ?`

func (q *Queries) GetCategoryByName(ctx context.Context, userID, name string) (Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategoryByName, userID, name))
}

const createCategory = `INSERT INTO categories (` + categoryColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c Category) error {
	_, err := q.db.ExecContext(ctx, createCategory, c.ID, c.UserID, c.Name, c.Color, c.Emoji, c.CreatedAt)
	return err
}

const updateCategory = `UPDATE categories SET name = ?, color = ?, emoji = ? WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, c Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, c.Name, c.Color, c.Emoji, c.ID, c.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const reassignRecords = `UPDATE records SET category_id = ?, version = version + 1, updated_at = ?
WHERE category_id = ? AND user_id = ?`

func (q *Queries) ReassignRecords(ctx context.Context, toID, updatedAt, fromID, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, reassignRecords, toID, updatedAt, fromID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getRecord = `SELECT ` + recordColumns + ` FROM records WHERE id = ? AND user_id = ?`

func (q *Queries) GetRecord(ctx context.Context, id, userID string) (Record, error) {
	return scanRecord(q.db.QueryRowContext(ctx, getRecord, id, userID))
}

const createRecord = `INSERT INTO records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecord(ctx context.Context, r Record) error {
	_, err := q.db.ExecContext(ctx, createRecord, r.ID, r.UserID, r.Day, r.Title, r.Amount, r.Note,
		r.ImageName, r.CategoryID, r.Version, r.MirroredVersion, r.CreatedAt, r.UpdatedAt)
	return err
}

const updateRecord = `UPDATE records
SET day = ?, title = ?, amount = ?, note = ?, image_name = ?, category_id = ?, version = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateRecord(ctx context.Context, r Record) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecord, r.Day, r.Title, r.Amount, r.Note, r.ImageName,
		r.CategoryID, r.Version, r.UpdatedAt, r.ID, r.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteRecord = `DELETE FROM records WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteRecord(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecord, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listRecordsBetween = `SELECT ` + recordColumns + ` FROM records
WHERE user_id = ? AND day >= ? AND day < ?
ORDER BY day DESC, created_at DESC`

func (q *Queries) ListRecordsBetween(ctx context.Context, userID, from, to string) ([]Record, error) {
	return q.listRecords(ctx, listRecordsBetween, userID, from, to)
}

const getPendingMirrorRecords = `SELECT ` + recordColumns + ` FROM records
WHERE mirrored_version < version
ORDER BY updated_at
LIMIT ?`

func (q *Queries) GetPendingMirrorRecords(ctx context.Context, limit int64) ([]Record, error) {
	return q.listRecords(ctx, getPendingMirrorRecords, limit)
}

const markRecordMirrored = `UPDATE records SET mirrored_version = ? WHERE id = ? AND mirrored_version < ?`

func (q *Queries) MarkRecordMirrored(ctx context.Context, id string, version int64) error {
	_, err := q.db.ExecContext(ctx, markRecordMirrored, version, id, version)
	return err
}

func (q *Queries) listRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
