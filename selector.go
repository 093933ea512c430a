package xlledger

import (
	"fmt"
	"strings"
)

// DefaultSheetIdentifier is the substring that marks a purchase register sheet.
const DefaultSheetIdentifier = "PR"

// SheetMatcher decides which sheet names are PR sheets.
type SheetMatcher struct {
	Identifier    string
	CaseSensitive bool
}

// DefaultSheetMatcher matches names containing "PR", ignoring case.
func DefaultSheetMatcher() SheetMatcher {
	return SheetMatcher{Identifier: DefaultSheetIdentifier}
}

// Match reports whether name contains the identifier. An empty identifier matches nothing.
func (m SheetMatcher) Match(name string) bool {
	if m.Identifier == "" {
		return false
	}
	if m.CaseSensitive {
		return strings.Contains(name, m.Identifier)
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(m.Identifier))
}

// SelectSheets returns the names that match, preserving their order.
// It fails with ErrNoMatchingSheet when nothing matches.
func SelectSheets(names []string, m SheetMatcher) ([]string, error) {
	var matched []string
	for _, name := range names {
		if m.Match(name) {
			matched = append(matched, name)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no sheet name contains %q among [%s]: %w",
			m.Identifier, strings.Join(names, ", "), ErrNoMatchingSheet)
	}
	return matched, nil
}
