package xlledger

import (
	"fmt"
	"strings"
)

// CellRef points at a single cell of a sheet.
type CellRef struct {
	Sheet string // sheet name (empty = unknown sheet)
	Row   int    // 0-based row index
	Col   int    // 0-based column index
}

// NewCellRef creates a CellRef with explicit sheet, row, col.
func NewCellRef(sheet string, row, col int) CellRef {
	return CellRef{Sheet: sheet, Row: row, Col: col}
}

// ParseCellRef parses a cell reference string like "A1", "Sheet1!B5", "'PR Jan'!C3" or "$A$1".
func ParseCellRef(s string) (CellRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CellRef{}, fmt.Errorf("empty cell reference")
	}

	var sheet string
	cellPart := s
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = s[:idx]
		if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
			sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
		}
		cellPart = s[idx+1:]
	}

	cellPart = strings.ReplaceAll(cellPart, "$", "")
	i := 0
	for i < len(cellPart) && isAlpha(cellPart[i]) {
		i++
	}
	if i == 0 || i == len(cellPart) {
		return CellRef{}, fmt.Errorf("invalid cell reference: %q", s)
	}

	col, err := NameToCol(cellPart[:i])
	if err != nil {
		return CellRef{}, fmt.Errorf("invalid cell reference %q: %w", s, err)
	}
	row := 0
	for _, ch := range cellPart[i:] {
		if ch < '0' || ch > '9' {
			return CellRef{}, fmt.Errorf("invalid row in cell reference: %q", s)
		}
		row = row*10 + int(ch-'0')
	}
	if row < 1 {
		return CellRef{}, fmt.Errorf("invalid row number in cell reference: %q", s)
	}
	return CellRef{Sheet: sheet, Row: row - 1, Col: col}, nil
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// String formats the CellRef as "Sheet1!A1" or "A1" if no sheet.
// Sheet names with spaces are quoted the way Excel does it.
func (c CellRef) String() string {
	name := c.CellName()
	if c.Sheet == "" {
		return name
	}
	if strings.ContainsAny(c.Sheet, " -'") {
		return "'" + strings.ReplaceAll(c.Sheet, "'", "''") + "'!" + name
	}
	return c.Sheet + "!" + name
}

// CellName returns just the cell part like "A1" without sheet name.
func (c CellRef) CellName() string {
	return ColToName(c.Col) + fmt.Sprintf("%d", c.Row+1)
}

// ColToName converts a 0-based column index to a column name.
// 0→"A", 25→"Z", 26→"AA", 702→"AAA"
func ColToName(col int) string {
	result := ""
	col++
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// NameToCol converts a column name to a 0-based column index.
// "A"→0, "Z"→25, "AA"→26
func NameToCol(name string) (int, error) {
	name = strings.ToUpper(name)
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	col := 0
	for _, ch := range name {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column name: %q", name)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// AreaRef is a rectangular region between two cells, inclusive.
type AreaRef struct {
	First CellRef
	Last  CellRef
}

// NewAreaRef creates an AreaRef from two cell references.
func NewAreaRef(first, last CellRef) AreaRef {
	return AreaRef{First: first, Last: last}
}

// ParseAreaRef parses a region like "A4:F120" or "'Sales PR'!$A$4:$F$120".
// A single cell reference is a one-cell area.
func ParseAreaRef(s string) (AreaRef, error) {
	s = strings.TrimSpace(s)
	firstPart, lastPart, isRange := strings.Cut(s, ":")
	first, err := ParseCellRef(firstPart)
	if err != nil {
		return AreaRef{}, err
	}
	if !isRange {
		return NewAreaRef(first, first), nil
	}
	last, err := ParseCellRef(lastPart)
	if err != nil {
		return AreaRef{}, err
	}
	switch {
	case last.Sheet == "":
		last.Sheet = first.Sheet
	case last.Sheet != first.Sheet:
		return AreaRef{}, fmt.Errorf("area %q spans sheets %q and %q", s, first.Sheet, last.Sheet)
	}
	if last.Row < first.Row || last.Col < first.Col {
		return AreaRef{}, fmt.Errorf("area %q ends before it starts", s)
	}
	return NewAreaRef(first, last), nil
}

// Bounds reads the area as a table region: its first row is the header and the
// remaining rows are data. The columns of the area do not narrow the table.
func (a AreaRef) Bounds() Bounds {
	return Bounds{HeaderRow: a.First.Row, DataStart: a.First.Row + 1, DataEnd: a.Last.Row + 1}
}

// String formats the AreaRef as "Sheet1!A1:C5" or "A1:C5".
func (a AreaRef) String() string {
	if a.First.Sheet != "" && a.First.Sheet == a.Last.Sheet {
		return a.First.String() + ":" + a.Last.CellName()
	}
	return a.First.String() + ":" + a.Last.String()
}

// SafeSheetName sanitizes a string for use as an Excel sheet name.
// It replaces forbidden characters ([]*?/\:) with underscore and truncates to 31 chars.
func SafeSheetName(name string) string {
	forbidden := []rune{'/', '\\', ':', '*', '?', '[', ']'}
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		for _, f := range forbidden {
			if r == f {
				runes[i] = '_'
				break
			}
		}
	}
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return strings.Trim(string(runes), "'")
}
