package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

func entries() []core.LedgerEntry {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []core.LedgerEntry{
		{ID: "e2", Kind: core.KindExpense, Category: "food", Amount: core.Cents(1250), Description: "lunch, with \"friends\"", Date: core.MustParseDate("2025-03-02"), CreatedAt: now},
		{ID: "e1", Kind: core.KindIncome, Category: "salary", Amount: core.Cents(300000), Date: core.MustParseDate("2025-03-01"), CreatedAt: now},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", CSV, false},
		{"csv", CSV, false},
		{" XLSX ", XLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			require.True(t, core.IsValidation(err), "ParseFormat(%q) = %v", tt.in, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, entries()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, header, records[0])
	require.Equal(t, []string{"2025-03-02", "expense", "food", "12.50", "lunch, with \"friends\"", "e2"}, records[1])
	require.Equal(t, "3000.00", records[2][3])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, XLSX, entries()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, header, rows[0])
	require.Equal(t, "food", rows[1][2])
	require.Equal(t, "12.5", rows[1][3])
	require.Equal(t, "e1", rows[2][5])
}

func TestFilename(t *testing.T) {
	require.Equal(t, "fintrack_entries_20250301.xlsx", XLSX.Filename(core.MustParseDate("2025-03-01")))
	require.Equal(t, "text/csv; charset=utf-8", CSV.ContentType())
}
