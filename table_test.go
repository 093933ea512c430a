package xlledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable_PadsAndDropsBlankRows(t *testing.T) {
	sheet := &Sheet{Name: "PR", Rows: textRows(
		[]string{"Title"},
		[]string{"Date", "", "Amount", "Amount"},
		[]string{"01-04-2023", "x", "100"},
		[]string{},
		[]string{"02-04-2023", "y", "200", "1", "extra"},
		[]string{"Total", "", "300"},
	)}
	tbl, err := NewTable(sheet, Bounds{HeaderRow: 1, DataStart: 2, DataEnd: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Column_2", "Amount", "Amount.1", "Column_5"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	for _, r := range tbl.Rows {
		assert.Len(t, r.Cells, len(tbl.Columns))
	}
	assert.Equal(t, 2, tbl.Rows[0].Source)
	assert.Equal(t, 4, tbl.Rows[1].Source)
	assert.True(t, tbl.Rows[0].Cells[4].IsBlank())
	assert.Equal(t, "extra", tbl.Value(1, "column_5").String())
}

func TestHeaderNames_Unique(t *testing.T) {
	tests := []struct {
		header []string
		want   []string
	}{
		{[]string{"Amount", "Amount", "Amount.1"}, []string{"Amount", "Amount.1", "Amount.1.1"}},
		{[]string{"Amount.1", "Amount", "amount"}, []string{"Amount.1", "Amount", "amount.2"}},
		{[]string{"Column_2", ""}, []string{"Column_2", "Column_2.1"}},
	}
	for _, tt := range tests {
		row := textRows(tt.header)[0]
		assert.Equal(t, tt.want, headerNames(row, len(tt.header)), "header %q", tt.header)
	}
}

func TestNewTable_InvalidBounds(t *testing.T) {
	sheet := &Sheet{Name: "PR", Rows: textRows([]string{"a", "b"})}
	_, err := NewTable(sheet, Bounds{HeaderRow: 0, DataStart: 1, DataEnd: 5})
	assert.ErrorIs(t, err, ErrInvalidBounds)
}

func TestTable_ColumnIndex(t *testing.T) {
	tbl := NewTableFromRows("PR", []string{"Amount", " cgst ", "CGST"}, nil)
	assert.Equal(t, 0, tbl.ColumnIndex("Amount"))
	assert.Equal(t, 2, tbl.ColumnIndex("CGST"), "exact match wins")
	assert.Equal(t, 1, tbl.ColumnIndex("Cgst"))
	assert.Equal(t, -1, tbl.ColumnIndex("IGST"))
}

func TestTable_CloneIsIndependent(t *testing.T) {
	tbl := NewTableFromRows("PR", []string{"A"}, [][]Cell{{Number(1)}})
	cp := tbl.Clone()
	cp.Rows[0].Cells[0] = Number(2)
	cp.Columns[0] = "B"
	assert.Equal(t, 1.0, tbl.Rows[0].Cells[0].Value)
	assert.Equal(t, "A", tbl.Columns[0])
}

func TestTable_HeadAndRef(t *testing.T) {
	sheet := &Sheet{Name: "Sales PR", Rows: textRows(
		[]string{"Date", "Amount"},
		[]string{"d1", "1"},
		[]string{"d2", "2"},
		[]string{"d3", "3"},
	)}
	tbl, err := NewTable(sheet, Bounds{HeaderRow: 0, DataStart: 1, DataEnd: 4})
	require.NoError(t, err)

	assert.Len(t, tbl.Head(2).Rows, 2)
	assert.Len(t, tbl.Head(0).Rows, 3)
	assert.Len(t, tbl.Rows, 3)
	assert.Equal(t, "'Sales PR'!B3", tbl.Ref(1, 1).String())
}
