package xlledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Sheet holds the raw grid of one worksheet. Rows may be ragged.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Cell returns the cell at the 0-based position, or a blank cell outside the grid.
func (s *Sheet) Cell(row, col int) Cell {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return Blank()
	}
	return s.Rows[row][col]
}

// Workbook is the in-memory content of a loaded workbook, sheets in workbook order.
type Workbook struct {
	Path   string
	Sheets []*Sheet
}

// SheetNames returns the sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names
}

// Sheet returns the sheet with the given name, or nil.
func (wb *Workbook) Sheet(name string) *Sheet {
	for _, s := range wb.Sheets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ReadOptions configures workbook loading.
type ReadOptions struct {
	// XLSCharset is the code page used for legacy .xls strings (default "utf-8").
	XLSCharset string
}

// OpenWorkbook reads every sheet of an .xlsx or .xls file into memory.
// The file is closed before OpenWorkbook returns.
func OpenWorkbook(path string, opts ReadOptions) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readXLSX(path)
	case ".xls":
		return readXLS(path, opts.XLSCharset)
	default:
		return nil, fmt.Errorf("open workbook %q: %w", path, ErrUnsupportedFormat)
	}
}

// xlsxReader converts excelize cells into typed cells, caching date detection per style.
type xlsxReader struct {
	file       *excelize.File
	dateStyles map[int]bool
}

func readXLSX(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer f.Close()

	r := &xlsxReader{file: f, dateStyles: make(map[int]bool)}
	wb := &Workbook{Path: path}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read rows from sheet %q: %w", name, err)
		}
		sheet := &Sheet{Name: name, Rows: make([][]Cell, len(rows))}
		for rowIdx, row := range rows {
			cells := make([]Cell, len(row))
			for colIdx, raw := range row {
				cells[colIdx] = r.cell(name, rowIdx, colIdx, raw)
			}
			sheet.Rows[rowIdx] = cells
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func (r *xlsxReader) cell(sheet string, row, col int, raw string) Cell {
	if raw == "" {
		return Blank()
	}
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return inferCell(raw)
	}
	typ, _ := r.file.GetCellType(sheet, name)
	switch typ {
	case excelize.CellTypeBool:
		return Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return Text(raw)
	case excelize.CellTypeError:
		return Cell{Value: raw, Type: CellError}
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return Cell{Value: t, Type: CellDate}
		}
		return Text(raw)
	}

	c := inferCell(raw)
	if c.Type == CellNumber && r.isDateCell(sheet, name) {
		if t, err := excelize.ExcelDateToTime(c.Value.(float64), false); err == nil {
			return Cell{Value: t, Type: CellDate}
		}
	}
	return c
}

// isDateCell reports whether the cell's number format renders a date or time.
func (r *xlsxReader) isDateCell(sheet, name string) bool {
	styleID, err := r.file.GetCellStyle(sheet, name)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := r.dateStyles[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := r.file.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = isBuiltInDateFormat(style.NumFmt)
		}
	}
	r.dateStyles[styleID] = isDate
	return isDate
}

func isBuiltInDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormat inspects a custom number format code for date or time tokens,
// ignoring quoted literals and bracketed sections like colours or locales.
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket, skip := false, false, false
	for _, r := range code {
		switch {
		case skip:
			skip = false
		case r == '\\' && !inQuote, (r == '_' || r == '*') && !inQuote && !inBracket:
			skip = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydhs")
}

func readXLS(path, charset string) (*Workbook, error) {
	if charset == "" {
		charset = "utf-8"
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	// Sheets are parsed lazily from the handle, so it stays open until every sheet is read.
	defer fh.Close()

	book, err := xls.OpenReader(fh, charset)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	if book == nil {
		return nil, fmt.Errorf("open workbook %q: no workbook stream", path)
	}

	wb := &Workbook{Path: path}
	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}
		sheet := &Sheet{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := xlsRow(ws, r)
			if row == nil {
				sheet.Rows = append(sheet.Rows, nil)
				continue
			}
			cells := make([]Cell, row.LastCol())
			for c := range cells {
				if c < row.FirstCol() {
					cells[c] = Blank()
					continue
				}
				cells[c] = inferCell(row.Col(c))
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		sheet.Rows = trimTrailingBlankRows(sheet.Rows)
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

// xlsRow returns nil for rows the sheet never recorded; the reader panics on those.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func trimTrailingBlankRows(rows [][]Cell) [][]Cell {
	end := len(rows)
	for end > 0 && countNonBlank(rows[end-1]) == 0 {
		end--
	}
	return rows[:end]
}
