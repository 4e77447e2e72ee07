// Package export renders a month of records as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"pocket/internal/core"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	RecordsSheet = "Records"
	SummarySheet = "Summary"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var recordHeaders = []string{"Date", "Title", "Category", "Amount", "Note", "Photo"}

// WriteMonth writes the records and their summary as an xlsx workbook to w.
// Records are listed in the given order.
func WriteMonth(w io.Writer, records []core.Record, categories []core.Category, summary core.MonthSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	byID := make(map[uuid.UUID]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	for i, h := range recordHeaders {
		if err := f.SetCellValue(RecordsSheet, cell(i, 1), h); err != nil {
			return err
		}
	}
	for idx, r := range records {
		row := idx + 2
		values := []any{
			r.Date.String(),
			r.Title,
			label(byID[r.CategoryID]),
			r.Amount,
			r.Note,
			r.ImageName,
		}
		for i, v := range values {
			if err := f.SetCellValue(RecordsSheet, cell(i, row), v); err != nil {
				return err
			}
		}
	}
	f.SetColWidth(RecordsSheet, "A", "A", 12)
	f.SetColWidth(RecordsSheet, "B", "C", 24)
	f.SetColWidth(RecordsSheet, "D", "D", 12)
	f.SetColWidth(RecordsSheet, "E", "F", 30)

	if err := writeSummary(f, summary); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, s core.MonthSummary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Month", fmt.Sprintf("%04d-%02d", s.Year, s.Month)},
		{"Total", s.Total},
		{},
		{"Category", "Amount"},
	}
	for _, ct := range s.ByCategory {
		rows = append(rows, []any{label(core.Category{Name: ct.Name, Emoji: ct.Emoji}), ct.Amount})
	}
	for r, values := range rows {
		for i, v := range values {
			if err := f.SetCellValue(SummarySheet, cell(i, r+1), v); err != nil {
				return err
			}
		}
	}
	f.SetColWidth(SummarySheet, "A", "A", 24)
	f.SetColWidth(SummarySheet, "B", "B", 14)
	return nil
}

// FileName is the attachment name of a month export.
func FileName(year, month int) string {
	return fmt.Sprintf("pocket-%04d-%02d.xlsx", year, month)
}

func label(c core.Category) string {
	if c.Emoji == "" {
		return c.Name
	}
	return c.Emoji + " " + c.Name
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
