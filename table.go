package xlledger

import (
	"fmt"
	"strings"
)

// Row is one data row of a Table.
type Row struct {
	// Source is the 0-based sheet row the cells came from, or -1 for rows built in memory.
	Source int
	Cells  []Cell
}

// Table is the trimmed, rectangular data region of a sheet with named columns.
// Every row holds exactly len(Columns) cells.
type Table struct {
	Sheet   string
	Columns []string
	Rows    []Row
}

// NewTable builds a Table from the bounds of a sheet. Header captions are trimmed,
// blank captions become "Column_N" and repeated captions get ".1", ".2" suffixes.
// Rows shorter than the table are padded with blank cells and blank rows are dropped.
func NewTable(sheet *Sheet, b Bounds) (*Table, error) {
	if err := b.Validate(sheet.Rows); err != nil {
		return nil, err
	}

	width := len(sheet.Rows[b.HeaderRow])
	for i := b.DataStart; i < b.DataEnd; i++ {
		if n := lastNonBlank(sheet.Rows[i]) + 1; n > width {
			width = n
		}
	}

	t := &Table{Sheet: sheet.Name, Columns: headerNames(sheet.Rows[b.HeaderRow], width)}
	for i := b.DataStart; i < b.DataEnd; i++ {
		src := sheet.Rows[i]
		if countNonBlank(src) == 0 {
			continue
		}
		cells := make([]Cell, width)
		for j := 0; j < width; j++ {
			if j < len(src) && !src[j].IsBlank() {
				cells[j] = src[j]
			} else {
				cells[j] = Blank()
			}
		}
		t.Rows = append(t.Rows, Row{Source: i, Cells: cells})
	}
	return t, nil
}

// NewTableFromRows builds an in-memory table. Rows are padded or truncated to the column count.
func NewTableFromRows(sheet string, columns []string, rows [][]Cell) *Table {
	t := &Table{Sheet: sheet, Columns: append([]string(nil), columns...)}
	for _, r := range rows {
		cells := make([]Cell, len(columns))
		copy(cells, r)
		t.Rows = append(t.Rows, Row{Source: -1, Cells: cells})
	}
	return t
}

func headerNames(header []Cell, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i].String())
		}
		if name == "" || strings.EqualFold(name, "nan") {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		key := strings.ToLower(name)
		if n, dup := seen[key]; dup {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[strings.ToLower(name)]; !taken {
					break
				}
			}
			seen[key] = n
		}
		seen[strings.ToLower(name)] = 0
		names[i] = name
	}
	return names
}

func lastNonBlank(row []Cell) int {
	for i := len(row) - 1; i >= 0; i-- {
		if !row[i].IsBlank() {
			return i
		}
	}
	return -1
}

// ColumnIndex returns the index of the named column, matching case-insensitively
// after trimming, or -1.
func (t *Table) ColumnIndex(name string) int {
	want := strings.TrimSpace(name)
	for i, c := range t.Columns {
		if c == want {
			return i
		}
	}
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return i
		}
	}
	return -1
}

// Value returns the cell of a row by column name, or a blank cell.
func (t *Table) Value(row int, column string) Cell {
	col := t.ColumnIndex(column)
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return Blank()
	}
	return t.Rows[row].Cells[col]
}

// Ref returns the sheet position of a table cell. Rows built in memory have no
// sheet position and report the table-relative row below the header.
func (t *Table) Ref(row, col int) CellRef {
	src := row + 1
	if row >= 0 && row < len(t.Rows) && t.Rows[row].Source >= 0 {
		src = t.Rows[row].Source
	}
	return NewCellRef(t.Sheet, src, col)
}

// Clone returns a copy that shares no slices with t. Cell values are immutable
// scalars, so copying the cells is enough.
func (t *Table) Clone() *Table {
	out := &Table{Sheet: t.Sheet, Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = Row{Source: r.Source, Cells: append([]Cell(nil), r.Cells...)}
	}
	return out
}

// Head returns a copy of the first n rows. n <= 0 returns every row.
func (t *Table) Head(n int) *Table {
	out := t.Clone()
	if n > 0 && n < len(out.Rows) {
		out.Rows = out.Rows[:n]
	}
	return out
}
