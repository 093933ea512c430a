package xlledger

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExpressionEvaluator evaluates classification expressions against a row environment.
type ExpressionEvaluator interface {
	Evaluate(expression string, env map[string]any) (any, error)
}

// exprEvaluator implements ExpressionEvaluator using expr-lang/expr.
type exprEvaluator struct {
	cache sync.Map // expression string → compiled *vm.Program
}

// NewExpressionEvaluator creates a new expression evaluator backed by expr-lang/expr.
func NewExpressionEvaluator() ExpressionEvaluator {
	return &exprEvaluator{}
}

func (e *exprEvaluator) Evaluate(expression string, env map[string]any) (any, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := e.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

func (e *exprEvaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(sampleRowEnv()))
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// CheckExpression compiles an expression against the row environment without running it.
func CheckExpression(expression string) error {
	if expression == "" {
		return fmt.Errorf("empty expression")
	}
	if _, err := expr.Compile(expression, expr.Env(sampleRowEnv())); err != nil {
		return fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	return nil
}

// rowEnv is the environment an expression sees for one row:
//
//	values   map of designated column → amount (0 when blank or not numeric)
//	present  map of designated column → true when the cell holds a number
//	labels   map of designated column → configured label
//	nonzero  labels of non-zero columns, left to right
//	columns  designated columns, left to right
//	row      1-based table row
func rowEnv(row int, obs []Observation) map[string]any {
	values := make(map[string]float64, len(obs))
	present := make(map[string]bool, len(obs))
	labels := make(map[string]string, len(obs))
	columns := make([]string, 0, len(obs))
	nonzero := make([]string, 0, len(obs))
	for _, o := range obs {
		f, _ := o.Value.Float64()
		values[o.Column] = f
		present[o.Column] = o.Numeric
		labels[o.Column] = o.Label
		columns = append(columns, o.Column)
		if o.NonZero() {
			nonzero = append(nonzero, o.Label)
		}
	}
	return map[string]any{
		"values":  values,
		"present": present,
		"labels":  labels,
		"nonzero": nonzero,
		"columns": columns,
		"row":     row + 1,
	}
}

func sampleRowEnv() map[string]any {
	return rowEnv(0, nil)
}
