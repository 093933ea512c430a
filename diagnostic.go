package xlledger

import "fmt"

// Severity indicates how serious a diagnostic is. None of them stop processing.
type Severity int

const (
	SeverityInfo    Severity = iota // Informational, e.g. a tie-break was applied
	SeverityWarning                 // Row data was ignored or left unclassified
)

// String returns "INFO" or "WARN".
func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARN"
	}
	return "INFO"
}

// Diagnostic codes reported by classification.
const (
	CodeUnclassifiedRow = "UNCLASSIFIED_ROW"
	CodeNonNumeric      = "NON_NUMERIC"
	CodeMultipleNonZero = "MULTIPLE_NONZERO"
	CodeRuleError       = "RULE_ERROR"
)

// Diagnostic is a non-fatal, per-row finding returned alongside a processed table.
type Diagnostic struct {
	Severity Severity
	Code     string
	Row      int     // 0-based table row
	Ref      CellRef // sheet position of the offending cell
	Message  string
}

// String formats the diagnostic as "[WARN] PR!C5: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Ref, d.Message)
}

// CountByCode tallies diagnostics per code.
func CountByCode(diags []Diagnostic) map[string]int {
	counts := make(map[string]int)
	for _, d := range diags {
		counts[d.Code]++
	}
	return counts
}
