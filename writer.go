package xlledger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheetName = "Sheet1"
	minColumnWidth   = 8.0
	maxColumnWidth   = 60.0
)

// WriteOptions configures workbook output.
type WriteOptions struct {
	// SheetName overrides the output sheet name; empty means the table's source sheet.
	SheetName string
	// BoldHeader renders the header row in bold (default true via DefaultWriteOptions).
	BoldHeader bool
	// AutoWidth sizes columns from their content.
	AutoWidth bool
}

// DefaultWriteOptions returns the options the processor writes with.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{BoldHeader: true, AutoWidth: true}
}

// WriteTable writes t as the only sheet of a new .xlsx workbook at path.
// The workbook is written to a temporary file next to path and renamed into place,
// so a failed write never leaves a partial file and never touches an existing one.
func WriteTable(t *Table, path string, opts WriteOptions) error {
	if err := CheckDestination(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".xlledger-*.xlsx")
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if err := WriteTableTo(t, tmp, opts); err != nil {
		tmp.Close()
		cleanup()
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Chmod(destinationMode(path)); err != nil {
		tmp.Close()
		cleanup()
		return &WriteError{Path: path, Err: fmt.Errorf("set file mode: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &WriteError{Path: path, Err: fmt.Errorf("close temp file: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return &WriteError{Path: path, Err: fmt.Errorf("rename into place: %w", err)}
	}
	return nil
}

// destinationMode keeps the permissions of a file being replaced; new files get 0644.
func destinationMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return info.Mode().Perm()
	}
	return 0o644
}

// CheckDestination reports, as a *WriteError, why path cannot receive a workbook:
// a format other than .xlsx or a missing parent directory.
func CheckDestination(path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return &WriteError{Path: path, Err: fmt.Errorf("output must be .xlsx, got %q", ext)}
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("destination directory: %w", err)}
	}
	if !info.IsDir() {
		return &WriteError{Path: path, Err: fmt.Errorf("destination %q is not a directory", dir)}
	}
	return nil
}

// TableBytes renders t as an .xlsx workbook in memory.
func TableBytes(t *Table, opts WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTableTo(t, &buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTableTo renders t as an .xlsx workbook to w.
func WriteTableTo(t *Table, w io.Writer, opts WriteOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := outputSheetName(t, opts)
	if sheet != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, sheet); err != nil {
			return fmt.Errorf("name sheet %q: %w", sheet, err)
		}
	}

	headerStyle := 0
	if opts.BoldHeader {
		id, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		headerStyle = id
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("create date style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	// Column widths must be set before the first row is streamed.
	if opts.AutoWidth {
		for col, width := range columnWidths(t) {
			if err := sw.SetColWidth(col+1, col+1, width); err != nil {
				return fmt.Errorf("set width of column %s: %w", ColToName(col), err)
			}
		}
	}

	header := make([]any, len(t.Columns))
	for i, name := range t.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		values := make([]any, len(row.Cells))
		for j, c := range row.Cells {
			values[j] = streamValue(c, dateStyle)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet %q: %w", sheet, err)
	}
	return f.Write(w)
}

func outputSheetName(t *Table, opts WriteOptions) string {
	name := opts.SheetName
	if name == "" {
		name = t.Sheet
	}
	if name = SafeSheetName(name); name == "" {
		return defaultSheetName
	}
	return name
}

// streamValue converts a cell to what the stream writer stores: numbers stay numbers,
// dates get a date format, blanks are written as empty cells.
func streamValue(c Cell, dateStyle int) any {
	switch v := c.Value.(type) {
	case nil:
		return nil
	case float64:
		return v
	case bool:
		return v
	case time.Time:
		return excelize.Cell{StyleID: dateStyle, Value: v}
	case string:
		if c.IsBlank() {
			return nil
		}
		return v
	default:
		return c.String()
	}
}

func columnWidths(t *Table) []float64 {
	widths := make([]float64, len(t.Columns))
	for i, name := range t.Columns {
		widths[i] = float64(utf8.RuneCountInString(name))
	}
	for _, row := range t.Rows {
		for j, c := range row.Cells {
			if n := float64(utf8.RuneCountInString(c.String())); n > widths[j] {
				widths[j] = n
			}
		}
	}
	for i, w := range widths {
		widths[i] = min(max(w+2, minColumnWidth), maxColumnWidth)
	}
	return widths
}
