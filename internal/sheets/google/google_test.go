package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"pocket/internal/core"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheet serves the subset of the Sheets values API the mirror uses.
type fakeSheet struct {
	mu     sync.Mutex
	rows   map[int][]any
	writes int
	reads  int
}

var rowRange = regexp.MustCompile(`!A(\d+):G\d+`)

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, _ := strings.Cut(r.URL.Path, "/values/")
	switch {
	case r.Method == http.MethodGet:
		f.reads++
		var values [][]any
		last := 0
		for n := range f.rows {
			if n > last && len(f.rows[n]) > 0 {
				last = n
			}
		}
		for n := 1; n <= last; n++ {
			if row := f.rows[n]; len(row) > 0 {
				values = append(values, []any{row[0]})
			} else {
				values = append(values, []any{})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := rowNumber(rng)
		f.rows[n] = vr.Values[0]
		f.writes++
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		delete(f.rows, rowNumber(strings.TrimSuffix(rng, ":clear")))
		json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func rowNumber(rng string) int {
	m := rowRange.FindStringSubmatch(rng)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{rows: map[int][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      "sheet-id",
		sheetName:          "Records",
		cacheValidDuration: time.Minute,
	}, fake
}

func testRecord(title string, amount int64) core.Record {
	return core.Record{
		ID:      uuid.New(),
		UserID:  "alice",
		Date:    core.NewDate(2024, 3, 5),
		Title:   title,
		Amount:  amount,
		Version: 1,
	}
}

func TestClient_UpsertAppendsThenUpdatesInPlace(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	food := core.Category{Name: "food", Emoji: "🍙"}

	coffee := testRecord("Coffee", 4500)
	lunch := testRecord("Lunch", 12000)
	if err := c.UpsertRecord(ctx, coffee, food); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if err := c.UpsertRecord(ctx, lunch, food); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}

	if got := fmt.Sprint(fake.rows[1][0]); got != "ID" {
		t.Errorf("row 1 = %v, want header", fake.rows[1])
	}
	if got := fmt.Sprint(fake.rows[2][0]); got != coffee.ID.String() {
		t.Errorf("row 2 id = %s, want %s", got, coffee.ID)
	}

	coffee.Title = "Latte"
	coffee.Version = 2
	c.InvalidateRowCache()
	if err := c.UpsertRecord(ctx, coffee, food); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}

	if len(fake.rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2 records)", len(fake.rows))
	}
	if got := fmt.Sprint(fake.rows[2][2]); got != "Latte" {
		t.Errorf("row 2 title = %q, want Latte", got)
	}
	if got := fmt.Sprint(fake.rows[2][4]); got != "🍙 food" {
		t.Errorf("row 2 category = %q", got)
	}
}

func TestClient_DeleteRecord(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	rec := testRecord("Coffee", 4500)
	if err := c.UpsertRecord(ctx, rec, core.Category{Name: "food"}); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if err := c.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if _, ok := fake.rows[2]; ok {
		t.Error("row 2 should be cleared")
	}

	// Unknown ids are ignored.
	if err := c.DeleteRecord(ctx, uuid.New()); err != nil {
		t.Errorf("DeleteRecord(unknown) error = %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.UpsertRecord(context.Background(), testRecord("x", 1), core.Category{}); err == nil {
		t.Error("expected error without service")
	}
	if err := c.DeleteRecord(context.Background(), uuid.New()); err == nil {
		t.Error("expected error without service")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Records")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v, want missing GOOGLE_SPREADSHEET_ID", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	clearCredentialEnv(t)

	_, err := New(context.Background(), "sheet-id", "")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v, want missing credentials", err)
	}
}

func TestIndexRows(t *testing.T) {
	a, b := uuid.New().String(), uuid.New().String()
	values := [][]any{
		{"ID"},
		{a},
		{},
		{" " + b + " "},
		{a},
	}

	index, count := indexRows(values)
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
	if index[a] != 2 {
		t.Errorf("row of first id = %d, want 2 (first occurrence)", index[a])
	}
	if index[b] != 4 {
		t.Errorf("row of second id = %d, want 4", index[b])
	}
	if len(index) != 2 {
		t.Errorf("index size = %d, want 2", len(index))
	}
}
