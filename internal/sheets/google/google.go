package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"pocket/internal/core"
	"pocket/internal/ledger"

	"github.com/google/uuid"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultRowCacheTTL = 2 * time.Minute

// Client mirrors records into one sheet of a spreadsheet, one row per record
// keyed by the record ID in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// Row index of the sheet, refreshed from column A when expired.
	mu                 sync.Mutex
	rowIndex           map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ledger.RecordMirror = (*Client)(nil)

// New creates a Sheets client. See newSheetsService for the credential sources.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Records"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultRowCacheTTL,
	}, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive between calls.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// UpsertRecord writes the record's row, replacing the existing one when present.
func (c *Client) UpsertRecord(ctx context.Context, r core.Record, category core.Category) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndexLocked(ctx); err != nil {
		return err
	}

	id := r.ID.String()
	row, exists := c.rowIndex[id]
	if !exists {
		row = c.cachedRowCount + 1
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
	vr := &gsheet.ValueRange{Values: [][]any{recordRow(r, category)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("update %s: %w", rng, err)
	}

	if !exists {
		c.rowIndex[id] = row
		c.cachedRowCount = row
	}
	slog.InfoContext(ctx, "Record mirrored to sheet",
		"record_id", r.ID,
		"version", r.Version,
		"row", row,
		"appended", !exists)
	return nil
}

// DeleteRecord blanks the record's row. Unknown ids are a no-op.
func (c *Client) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndexLocked(ctx); err != nil {
		return err
	}

	row, ok := c.rowIndex[id.String()]
	if !ok {
		slog.InfoContext(ctx, "Record not present in sheet, nothing to delete", "record_id", id)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	delete(c.rowIndex, id.String())
	slog.InfoContext(ctx, "Record removed from sheet", "record_id", id, "row", row)
	return nil
}

// loadIndexLocked refreshes the row index when the cache expired, writing
// the header row into an empty sheet.
func (c *Client) loadIndexLocked(ctx context.Context) error {
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	index, count := indexRows(resp.Values)
	if count == 0 {
		hdr := fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn)
		vr := &gsheet.ValueRange{Values: [][]any{headerRow()}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		count = 1
	}

	c.rowIndex = index
	c.cachedRowCount = count
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

// InvalidateRowCache forces the next write to re-read the sheet.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.cacheExpiresAt = time.Time{}
}
