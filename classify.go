package xlledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultUnclassified is written to LEDGER HEAD when no designated column has a non-zero amount.
const DefaultUnclassified = "UNCLASSIFIED"

// ErrNoDesignatedColumns indicates classification was requested without any column to inspect.
var ErrNoDesignatedColumns = errors.New("no columns designated for classification")

// Observation is what a rule sees of one designated column in one row.
type Observation struct {
	Column  string
	Label   string
	Cell    Cell
	Value   decimal.Decimal
	Numeric bool
}

// NonZero reports whether the column holds a numeric, non-zero amount.
func (o Observation) NonZero() bool {
	return o.Numeric && !o.Value.IsZero()
}

// Decision is a rule's verdict for one row. An empty Label leaves the row unclassified.
type Decision struct {
	Label string
	// Matched lists the designated columns that carried a non-zero amount.
	Matched []string
	// TieBreak is set when several columns qualified and the rule picked one of them.
	TieBreak bool
}

// Rule derives the LEDGER HEAD label of a row from its designated columns.
// Observations arrive in designated order.
type Rule interface {
	Name() string
	Decide(row int, obs []Observation) (Decision, error)
}

// FirstNonZero labels a row after the leftmost designated column with a non-zero amount.
// Later non-zero columns are reported as a tie-break.
type FirstNonZero struct{}

func (FirstNonZero) Name() string { return "first-non-zero" }

func (FirstNonZero) Decide(_ int, obs []Observation) (Decision, error) {
	var d Decision
	for _, o := range obs {
		if !o.NonZero() {
			continue
		}
		if d.Label == "" {
			d.Label = o.Label
		}
		d.Matched = append(d.Matched, o.Column)
	}
	d.TieBreak = len(d.Matched) > 1
	return d, nil
}

// JoinAll labels a row with every non-zero column, joined by Separator (default " + ").
type JoinAll struct {
	Separator string
}

func (JoinAll) Name() string { return "join-all" }

func (j JoinAll) Decide(_ int, obs []Observation) (Decision, error) {
	sep := j.Separator
	if sep == "" {
		sep = " + "
	}
	var d Decision
	var labels []string
	for _, o := range obs {
		if o.NonZero() {
			labels = append(labels, o.Label)
			d.Matched = append(d.Matched, o.Column)
		}
	}
	d.Label = strings.Join(labels, sep)
	return d, nil
}

// LargestMagnitude labels a row after the column with the largest absolute amount.
// Equal amounts resolve to the leftmost column.
type LargestMagnitude struct{}

func (LargestMagnitude) Name() string { return "largest" }

func (LargestMagnitude) Decide(_ int, obs []Observation) (Decision, error) {
	var d Decision
	var best decimal.Decimal
	for _, o := range obs {
		if !o.NonZero() {
			continue
		}
		d.Matched = append(d.Matched, o.Column)
		if abs := o.Value.Abs(); d.Label == "" || abs.GreaterThan(best) {
			d.Label = o.Label
			best = abs
		}
	}
	d.TieBreak = len(d.Matched) > 1
	return d, nil
}

// ExprRule evaluates an expr-lang expression per row. The expression must return a
// string (or nil for unclassified); see rowEnv for the variables it can use, e.g.
//
//	values["IGST"] > 0 ? "Interstate Purchase" : "Local Purchase"
type ExprRule struct {
	Expression string
	evaluator  ExpressionEvaluator
}

// NewExprRule compiles the expression up front so syntax errors surface before any row runs.
func NewExprRule(expression string) (*ExprRule, error) {
	if err := CheckExpression(expression); err != nil {
		return nil, err
	}
	return &ExprRule{Expression: expression, evaluator: NewExpressionEvaluator()}, nil
}

func (r *ExprRule) Name() string { return "expr" }

func (r *ExprRule) Decide(row int, obs []Observation) (Decision, error) {
	var d Decision
	for _, o := range obs {
		if o.NonZero() {
			d.Matched = append(d.Matched, o.Column)
		}
	}
	result, err := r.evaluator.Evaluate(r.Expression, rowEnv(row, obs))
	if err != nil {
		return d, err
	}
	switch v := result.(type) {
	case nil:
	case string:
		d.Label = strings.TrimSpace(v)
	default:
		return d, fmt.Errorf("expression %q returned %T, expected string", r.Expression, result)
	}
	return d, nil
}

// RuleByName resolves a rule name. The expression is only used by "expr".
func RuleByName(name, expression string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first-non-zero":
		return FirstNonZero{}, nil
	case "join-all":
		return JoinAll{}, nil
	case "largest":
		return LargestMagnitude{}, nil
	case "expr":
		return NewExprRule(expression)
	default:
		return nil, fmt.Errorf("unknown classification rule %q", name)
	}
}

// ClassifyOptions configures a classification pass.
type ClassifyOptions struct {
	// Columns are the designated numeric columns, inspected left to right.
	Columns []string
	// Labels maps a designated column to its ledger label; unmapped columns use their own name.
	Labels map[string]string
	// Rule decides the label; nil means FirstNonZero.
	Rule Rule
	// Unclassified is written for rows without a label; empty means DefaultUnclassified.
	Unclassified string
	// BlankUnclassified leaves unlabelled rows blank instead of writing the sentinel.
	BlankUnclassified bool
	// Target is the column to fill; empty means LEDGER HEAD. It is appended when missing.
	Target string
}

func (o ClassifyOptions) label(column string) string {
	for k, v := range o.Labels {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(column)) && v != "" {
			return v
		}
	}
	return column
}

func (o ClassifyOptions) sentinel() string {
	if o.BlankUnclassified {
		return ""
	}
	if o.Unclassified == "" {
		return DefaultUnclassified
	}
	return o.Unclassified
}

// Classify returns a copy of t with the target column filled for every row, plus the
// per-row diagnostics. Row-level problems never fail the pass: non-numeric amounts are
// treated as absent and rule errors leave the row unclassified. Only configuration
// problems (no columns, unknown columns) return an error.
func Classify(t *Table, opts ClassifyOptions) (*Table, []Diagnostic, error) {
	if len(opts.Columns) == 0 {
		return nil, nil, ErrNoDesignatedColumns
	}
	rule := opts.Rule
	if rule == nil {
		rule = FirstNonZero{}
	}
	target := opts.Target
	if target == "" {
		target = ColumnLedgerHead
	}

	type designated struct {
		name  string
		index int
		label string
	}
	var cols []designated
	var missing []string
	seen := make(map[int]bool)
	for _, name := range opts.Columns {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		cols = append(cols, designated{name: t.Columns[idx], index: idx, label: opts.label(t.Columns[idx])})
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("classify: %s: %w", strings.Join(missing, ", "), ErrColumnNotFound)
	}

	out := t.Clone()
	targetIdx := out.ColumnIndex(target)
	if targetIdx < 0 {
		out.Columns = append(out.Columns, target)
		for i := range out.Rows {
			out.Rows[i].Cells = append(out.Rows[i].Cells, Blank())
		}
		targetIdx = len(out.Columns) - 1
	}

	var diags []Diagnostic
	obs := make([]Observation, len(cols))
	for i := range out.Rows {
		cells := out.Rows[i].Cells
		for k, c := range cols {
			cell := cells[c.index]
			value, present, numeric := cellAmount(cell)
			obs[k] = Observation{Column: c.name, Label: c.label, Cell: cell, Value: value, Numeric: numeric}
			if present && !numeric {
				diags = append(diags, Diagnostic{
					Severity: SeverityWarning,
					Code:     CodeNonNumeric,
					Row:      i,
					Ref:      out.Ref(i, c.index),
					Message:  fmt.Sprintf("%s value %q is not a number; treated as empty", c.name, cell.String()),
				})
			}
		}

		d, err := rule.Decide(i, obs)
		if err != nil {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeRuleError,
				Row:      i,
				Ref:      out.Ref(i, targetIdx),
				Message:  fmt.Sprintf("rule %s failed: %v", rule.Name(), err),
			})
			d.Label = ""
		}

		label := d.Label
		if label == "" {
			label = opts.sentinel()
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeUnclassifiedRow,
				Row:      i,
				Ref:      out.Ref(i, targetIdx),
				Message:  fmt.Sprintf("no non-zero amount in %s", joinColumnNames(obs)),
			})
		} else if d.TieBreak {
			diags = append(diags, Diagnostic{
				Severity: SeverityInfo,
				Code:     CodeMultipleNonZero,
				Row:      i,
				Ref:      out.Ref(i, targetIdx),
				Message:  fmt.Sprintf("%s all non-zero; rule %s chose %q", strings.Join(d.Matched, ", "), rule.Name(), label),
			})
		}
		cells[targetIdx] = Text(label)
	}
	return out, diags, nil
}

func joinColumnNames(obs []Observation) string {
	names := make([]string, len(obs))
	for i, o := range obs {
		names[i] = o.Column
	}
	return strings.Join(names, ", ")
}
