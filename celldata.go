package xlledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CellType represents the type of data in a cell.
type CellType int

const (
	CellBlank CellType = iota
	CellString
	CellNumber
	CellBoolean
	CellDate
	CellError
)

// String returns a human-readable name for the CellType.
func (ct CellType) String() string {
	switch ct {
	case CellBlank:
		return "Blank"
	case CellString:
		return "String"
	case CellNumber:
		return "Number"
	case CellBoolean:
		return "Boolean"
	case CellDate:
		return "Date"
	case CellError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Cell is a single typed value of a sheet or table.
// Number cells hold float64, Boolean cells hold bool, Date cells hold time.Time,
// everything else a string.
type Cell struct {
	Value any
	Type  CellType
}

// Blank returns an empty cell.
func Blank() Cell { return Cell{Type: CellBlank} }

// Text returns a string cell, or a blank cell when s is empty.
func Text(s string) Cell {
	if s == "" {
		return Blank()
	}
	return Cell{Value: s, Type: CellString}
}

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Value: f, Type: CellNumber} }

// Bool returns a boolean cell.
func Bool(b bool) Cell { return Cell{Value: b, Type: CellBoolean} }

// IsBlank reports whether the cell carries no value. Whitespace-only text counts as blank.
func (c Cell) IsBlank() bool {
	if c.Type == CellBlank || c.Value == nil {
		return true
	}
	if s, ok := c.Value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// String renders the cell value the way it would be displayed in a plain grid.
func (c Cell) String() string {
	if c.Value == nil {
		return ""
	}
	switch v := c.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// looksNumeric reports whether the cell is a number or text that reads as one.
func (c Cell) looksNumeric() bool {
	if c.Type == CellNumber {
		return true
	}
	if c.Type != CellString {
		return false
	}
	_, ok := parseNumber(c.String())
	return ok
}

// inferCell turns raw sheet text into a typed cell: numbers become CellNumber,
// everything else stays a string.
func inferCell(raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Blank()
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(raw)
}
