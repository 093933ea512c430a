package xlledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixtureSheet struct {
	name string
	rows [][]any
}

// writeWorkbook saves the sheets, in order, to a new .xlsx file in a temp dir.
// nil values leave the cell empty.
func writeWorkbook(t *testing.T, name string, sheets ...fixtureSheet) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(s.name, cell, v))
			}
		}
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// textRows builds a grid of text cells; "" becomes a blank cell.
func textRows(rows ...[]string) [][]Cell {
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		cells := make([]Cell, len(r))
		for j, v := range r {
			cells[j] = Text(v)
		}
		out[i] = cells
	}
	return out
}

// salesPRJan is a PR sheet with a title, a header, two data rows and a total row.
func salesPRJan() fixtureSheet {
	return fixtureSheet{
		name: "Sales PR Jan",
		rows: [][]any{
			{"Date", "Particulars", "Amount", "CGST", "SGST", "IGST"},
			{"2023-01-01", "Widgets", 500, 0, 18, 0},
			{"2023-01-02", "Gadgets", 500, 9, 9, 0},
			{"Total", nil, 1000, 9, 27, 0},
		},
	}
}
