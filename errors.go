package xlledger

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var (
	// ErrNoMatchingSheet indicates that no sheet name contains the PR identifier.
	// The caller decides whether to ask the user for a sheet or abort.
	ErrNoMatchingSheet = errors.New("no matching sheet")

	// ErrAmbiguousHeader indicates the header row could not be located with confidence.
	ErrAmbiguousHeader = errors.New("ambiguous header")

	// ErrAmbiguousFooter indicates the end of the data region could not be located with confidence.
	ErrAmbiguousFooter = errors.New("ambiguous footer")

	// ErrWriteFailure indicates the output workbook could not be written.
	ErrWriteFailure = errors.New("write failure")

	// ErrUnknownColumn indicates a requested column is not part of the recognized column set.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrColumnNotFound indicates a designated column does not exist in the table.
	ErrColumnNotFound = errors.New("column not found")

	// ErrUnsupportedFormat indicates the input file extension is not a readable workbook format.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")

	// ErrInvalidBounds indicates user-supplied bounds do not fit the sheet.
	ErrInvalidBounds = errors.New("invalid bounds")
)

// StageError wraps a failure of one pipeline stage.
type StageError struct {
	Stage string // "load", "select", "trim", "augment", "classify", "write"
	Sheet string
	Err   error
}

func (e *StageError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s sheet %q: %v", e.Stage, e.Sheet, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TrimError reports an ambiguous header or footer together with the rows that
// were considered, so a caller can ask the user to confirm the boundary.
type TrimError struct {
	Err        error // ErrAmbiguousHeader or ErrAmbiguousFooter
	Candidates []int // 0-based sheet rows considered for the boundary
	Reason     string
}

func (e *TrimError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Candidates) > 0 {
		rows := make([]string, len(e.Candidates))
		for i, r := range e.Candidates {
			rows[i] = fmt.Sprintf("%d", r+1)
		}
		fmt.Fprintf(&b, " (candidate rows %s)", strings.Join(rows, ", "))
	}
	return b.String()
}

func (e *TrimError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed output write. It matches ErrWriteFailure with errors.Is
// and unwraps to the underlying I/O error.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %q: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is reports ErrWriteFailure as a match.
func (e *WriteError) Is(target error) bool {
	return target == ErrWriteFailure
}

// Error codes reported to front ends.
const (
	CodeNoMatchingSheet   = "NO_MATCHING_SHEET"
	CodeAmbiguousHeader   = "AMBIGUOUS_HEADER"
	CodeAmbiguousFooter   = "AMBIGUOUS_FOOTER"
	CodeWriteFailure      = "WRITE_FAILURE"
	CodeUnknownColumn     = "UNKNOWN_COLUMN"
	CodeColumnNotFound    = "COLUMN_NOT_FOUND"
	CodeNoColumns         = "NO_DESIGNATED_COLUMNS"
	CodeInvalidBounds     = "INVALID_BOUNDS"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeFileNotFound      = "FILE_NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

// ErrorCode returns the front-end code of a pipeline error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoMatchingSheet):
		return CodeNoMatchingSheet
	case errors.Is(err, ErrAmbiguousHeader):
		return CodeAmbiguousHeader
	case errors.Is(err, ErrAmbiguousFooter):
		return CodeAmbiguousFooter
	case errors.Is(err, ErrWriteFailure):
		return CodeWriteFailure
	case errors.Is(err, ErrUnknownColumn):
		return CodeUnknownColumn
	case errors.Is(err, ErrColumnNotFound):
		return CodeColumnNotFound
	case errors.Is(err, ErrNoDesignatedColumns):
		return CodeNoColumns
	case errors.Is(err, ErrInvalidBounds):
		return CodeInvalidBounds
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, fs.ErrNotExist):
		return CodeFileNotFound
	default:
		return CodeInternal
	}
}
