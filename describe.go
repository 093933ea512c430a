package xlledger

import (
	"fmt"
	"strings"
)

// DefaultPreviewRows is the number of rows shown when a preview size is not given.
const DefaultPreviewRows = 10

// Preview returns the first n rows of t as display strings, blanks rendered empty.
// n <= 0 means DefaultPreviewRows.
func Preview(t *Table, n int) [][]string {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	head := t.Head(n)
	out := make([][]string, len(head.Rows))
	for i, r := range head.Rows {
		row := make([]string, len(r.Cells))
		for j, c := range r.Cells {
			if !c.IsBlank() {
				row[j] = c.String()
			}
		}
		out[i] = row
	}
	return out
}

// SearchColumns filters column names by a case-insensitive query. Prefix matches come
// first, then other substring matches, each group in table order. An empty query
// returns every column.
func SearchColumns(columns []string, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]string(nil), columns...)
	}
	var prefix, contains []string
	for _, c := range columns {
		lc := strings.ToLower(c)
		switch {
		case strings.HasPrefix(lc, q):
			prefix = append(prefix, c)
		case strings.Contains(lc, q):
			contains = append(contains, c)
		}
	}
	return append(prefix, contains...)
}

// Describe returns a human-readable summary of a loaded session: the selected sheet,
// detected bounds, the column list and a short preview.
func Describe(s *Session, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workbook: %s\n", s.SourcePath)
	if s.Workbook != nil {
		fmt.Fprintf(&b, "Sheets: %s\n", strings.Join(s.Workbook.SheetNames(), ", "))
	}
	fmt.Fprintf(&b, "Sheet: %s", s.SheetName)
	if len(s.Candidates) > 1 {
		fmt.Fprintf(&b, " (of %d matches)", len(s.Candidates))
	}
	b.WriteByte('\n')
	if s.Table == nil {
		b.WriteString("No table\n")
		return b.String()
	}

	t := s.Table
	if len(t.Rows) > 0 && t.Rows[0].Source >= 0 {
		header := NewCellRef(s.SheetName, s.Bounds.HeaderRow, 0)
		last := NewCellRef(s.SheetName, max(s.Bounds.DataEnd-1, s.Bounds.HeaderRow), max(len(t.Columns)-1, 0))
		fmt.Fprintf(&b, "Region: %s header row %d, data rows %d-%d\n",
			NewAreaRef(header, last), s.Bounds.HeaderRow+1, s.Bounds.DataStart+1, s.Bounds.DataEnd)
	}
	fmt.Fprintf(&b, "Rows: %d\n", len(t.Rows))
	b.WriteString("Columns:\n")
	for i, c := range t.Columns {
		fmt.Fprintf(&b, "  %s  %s\n", ColToName(i), c)
	}

	preview := Preview(t, rows)
	if len(preview) > 0 {
		fmt.Fprintf(&b, "Preview (%d rows):\n", len(preview))
		b.WriteString("  " + strings.Join(t.Columns, " | ") + "\n")
		for _, r := range preview {
			b.WriteString("  " + strings.Join(r, " | ") + "\n")
		}
	}

	if len(s.Diagnostics) > 0 {
		counts := CountByCode(s.Diagnostics)
		b.WriteString("Diagnostics:\n")
		for _, code := range []string{CodeUnclassifiedRow, CodeNonNumeric, CodeMultipleNonZero, CodeRuleError} {
			if n := counts[code]; n > 0 {
				fmt.Fprintf(&b, "  %s: %d\n", code, n)
			}
		}
	}
	return b.String()
}
