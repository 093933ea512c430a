package xlledger

import (
	"fmt"
	"strings"
)

// Recognized column names, in the order they are appended.
const (
	ColumnLedgerHead   = "LEDGER HEAD"
	ColumnTaxableValue = "TAXABLE VALUE"
	ColumnCGST         = "CGST"
	ColumnSGST         = "SGST"
	ColumnIGST         = "IGST"
)

// ColumnSpec describes a column the augmenter knows how to add.
type ColumnSpec struct {
	Name    string
	Default Cell
}

// RecognizedColumns returns the fixed column set in its fixed order. New cells start blank;
// LEDGER HEAD stays blank until classification fills it.
func RecognizedColumns() []ColumnSpec {
	return []ColumnSpec{
		{Name: ColumnLedgerHead, Default: Blank()},
		{Name: ColumnTaxableValue, Default: Blank()},
		{Name: ColumnCGST, Default: Blank()},
		{Name: ColumnSGST, Default: Blank()},
		{Name: ColumnIGST, Default: Blank()},
	}
}

// LookupColumns resolves user-chosen names to recognized specs, case-insensitively.
// Duplicates are collapsed.
func LookupColumns(names []string) ([]ColumnSpec, error) {
	var specs []ColumnSpec
	seen := make(map[string]bool)
	for _, name := range names {
		spec, ok := lookupColumn(name)
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownColumn)
		}
		if !seen[spec.Name] {
			seen[spec.Name] = true
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

func lookupColumn(name string) (ColumnSpec, bool) {
	for _, spec := range RecognizedColumns() {
		if strings.EqualFold(strings.TrimSpace(name), spec.Name) {
			return spec, true
		}
	}
	return ColumnSpec{}, false
}

// Augment returns a copy of t with every requested column that is not already present
// appended in recognized order. Existing columns and cells are left untouched, so
// applying the same specs twice changes nothing the second time.
func Augment(t *Table, specs []ColumnSpec) (*Table, error) {
	requested := make(map[string]ColumnSpec, len(specs))
	for _, s := range specs {
		known, ok := lookupColumn(s.Name)
		if !ok {
			return nil, fmt.Errorf("augment %q: %w", s.Name, ErrUnknownColumn)
		}
		if s.Default.Type == CellBlank && s.Default.Value == nil {
			s.Default = known.Default
		}
		s.Name = known.Name
		requested[known.Name] = s
	}

	out := t.Clone()
	for _, known := range RecognizedColumns() {
		spec, ok := requested[known.Name]
		if !ok || out.ColumnIndex(spec.Name) >= 0 {
			continue
		}
		out.Columns = append(out.Columns, spec.Name)
		for i := range out.Rows {
			out.Rows[i].Cells = append(out.Rows[i].Cells, spec.Default)
		}
	}
	return out, nil
}
