package xlledger

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWorkbook_TypedCells(t *testing.T) {
	day := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	path := writeWorkbook(t, "typed.xlsx",
		fixtureSheet{name: "Notes", rows: [][]any{{"hello"}}},
		fixtureSheet{name: "PR", rows: [][]any{
			{"Date", "Particulars", "Amount", "Paid"},
			{day, "Steel", 1200.5, true},
			{nil, "Cement", 300, false},
		}},
	)

	wb, err := OpenWorkbook(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes", "PR"}, wb.SheetNames())
	assert.Nil(t, wb.Sheet("Missing"))

	pr := wb.Sheet("PR")
	require.NotNil(t, pr)
	require.Len(t, pr.Rows, 3)

	assert.Equal(t, Text("Date"), pr.Cell(0, 0))
	date := pr.Cell(1, 0)
	require.Equal(t, CellDate, date.Type)
	assert.True(t, date.Value.(time.Time).Equal(day))
	assert.Equal(t, Number(1200.5), pr.Cell(1, 2))
	assert.Equal(t, Bool(true), pr.Cell(1, 3))
	assert.True(t, pr.Cell(2, 0).IsBlank())
	assert.Equal(t, Number(300), pr.Cell(2, 2))
	assert.True(t, pr.Cell(10, 10).IsBlank(), "outside the grid")
}

func TestOpenWorkbook_LegacyXLS(t *testing.T) {
	for _, charset := range []string{"", "utf-8"} {
		wb, err := OpenWorkbook(filepath.Join("testdata", "register.xls"), ReadOptions{XLSCharset: charset})
		require.NoError(t, err)
		assert.Equal(t, []string{"Notes", "Sales PR"}, wb.SheetNames())
		assert.Equal(t, Text("prepared by accounts"), wb.Sheet("Notes").Cell(0, 0))

		pr := wb.Sheet("Sales PR")
		require.NotNil(t, pr)
		require.Len(t, pr.Rows, 4)
		assert.Equal(t, Text("Particulars"), pr.Cell(0, 1))
		assert.Equal(t, Text("2023-01-01"), pr.Cell(1, 0))
		assert.Equal(t, Number(500), pr.Cell(1, 2))
		assert.Equal(t, Number(250.5), pr.Cell(2, 2))
		assert.Equal(t, Number(18), pr.Cell(3, 4))
		assert.True(t, pr.Cell(3, 1).IsBlank())
	}
}

func TestOpenWorkbook_Errors(t *testing.T) {
	_, err := OpenWorkbook("ledger.csv", ReadOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = OpenWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"), ReadOptions{})
	assert.ErrorIs(t, err, fs.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "corrupt.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))
	_, err = OpenWorkbook(bad, ReadOptions{})
	assert.Error(t, err)

	badXLS := filepath.Join(t.TempDir(), "corrupt.xls")
	require.NoError(t, os.WriteFile(badXLS, []byte("not an ole2 file"), 0o644))
	_, err = OpenWorkbook(badXLS, ReadOptions{})
	assert.Error(t, err)

	_, err = OpenWorkbook(filepath.Join(t.TempDir(), "missing.xls"), ReadOptions{})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestIsDateFormat(t *testing.T) {
	assert.True(t, isDateFormat("dd-mm-yyyy"))
	assert.True(t, isDateFormat("[$-409]d-mmm-yy;@"))
	assert.True(t, isDateFormat("h:mm AM/PM"))
	assert.False(t, isDateFormat("#,##0.00"))
	assert.False(t, isDateFormat(`0.00 "days"`))
	assert.False(t, isDateFormat("[Red]0.00"))
	assert.False(t, isDateFormat(`#,##0.00\ \D\r`))
	assert.False(t, isDateFormat(`_(* #,##0_);_(* \(#,##0\);_(* "-"_);_(@_)`))
	assert.True(t, isDateFormat(`dd\-mm\-yyyy`))
	assert.True(t, isBuiltInDateFormat(14))
	assert.False(t, isBuiltInDateFormat(4))
}
