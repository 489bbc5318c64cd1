// Package export renders ledger entries as downloadable CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", core.Invalid("format", "must be csv or xlsx")
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is the attachment name for an export produced on day.
func (f Format) Filename(day core.Date) string {
	return fmt.Sprintf("fintrack_entries_%s.%s", strings.ReplaceAll(day.String(), "-", ""), f)
}

var header = []string{"Date", "Kind", "Category", "Amount", "Description", "ID"}

func row(e core.LedgerEntry) []string {
	return []string{
		e.Date.String(),
		string(e.Kind),
		e.Category,
		e.Amount.String(),
		e.Description,
		e.ID,
	}
}

// Write renders entries in format f to w.
func Write(w io.Writer, f Format, entries []core.LedgerEntry) error {
	switch f {
	case XLSX:
		return writeXLSX(w, entries)
	default:
		return writeCSV(w, entries)
	}
}

func writeCSV(w io.Writer, entries []core.LedgerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(row(e)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Entries"

var colWidths = map[string]float64{"A": 12, "B": 10, "C": 16, "D": 12, "E": 40, "F": 38}

func writeXLSX(w io.Writer, entries []core.LedgerEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write xlsx header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, bold)
	}

	for i, e := range entries {
		r := i + 2
		values := []any{e.Date.String(), string(e.Kind), e.Category, e.Amount.Decimal().InexactFloat64(), e.Description, e.ID}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write xlsx row %d: %w", r, err)
			}
		}
	}

	for col, width := range colWidths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
