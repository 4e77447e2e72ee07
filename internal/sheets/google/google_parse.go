package google

import (
	"fmt"
	"strings"

	"pocket/internal/core"

	"github.com/google/uuid"
)

// Columns: ID, Date, Title, Amount, Category, Note, Version.
const lastColumn = "G"

func headerRow() []any {
	return []any{"ID", "Date", "Title", "Amount", "Category", "Note", "Version"}
}

func recordRow(r core.Record, c core.Category) []any {
	return []any{
		r.ID.String(),
		r.Date.String(),
		r.Title,
		r.Amount,
		categoryLabel(c),
		r.Note,
		r.Version,
	}
}

func categoryLabel(c core.Category) string {
	return strings.TrimSpace(c.Emoji + " " + c.Name)
}

// indexRows maps record IDs found in column A to their 1-based row and
// returns the number of rows in use. Rows that do not hold an ID (header,
// blanked rows) are counted but not indexed.
func indexRows(values [][]any) (map[string]int, int) {
	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if _, err := uuid.Parse(v); err != nil {
			continue
		}
		if _, dup := index[v]; !dup {
			index[v] = i + 1
		}
	}
	return index, len(values)
}
