package xlledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowEnv(t *testing.T) {
	obs := []Observation{
		{Column: "CGST", Label: "Input CGST", Value: decimal.NewFromInt(9), Numeric: true},
		{Column: "SGST", Label: "SGST", Value: decimal.Zero, Numeric: false},
	}
	env := rowEnv(4, obs)

	assert.Equal(t, 5, env["row"])
	assert.Equal(t, map[string]float64{"CGST": 9, "SGST": 0}, env["values"])
	assert.Equal(t, map[string]bool{"CGST": true, "SGST": false}, env["present"])
	assert.Equal(t, []string{"Input CGST"}, env["nonzero"])
	assert.Equal(t, []string{"CGST", "SGST"}, env["columns"])
}

func TestExpressionEvaluator(t *testing.T) {
	ev := NewExpressionEvaluator()
	env := rowEnv(0, []Observation{{Column: "IGST", Label: "IGST", Value: decimal.NewFromInt(18), Numeric: true}})

	v, err := ev.Evaluate(`values["IGST"] > 0 ? "Interstate" : "Local"`, env)
	require.NoError(t, err)
	assert.Equal(t, "Interstate", v)

	// second call is served from the compiled cache
	v, err = ev.Evaluate(`values["IGST"] > 0 ? "Interstate" : "Local"`, env)
	require.NoError(t, err)
	assert.Equal(t, "Interstate", v)

	v, err = ev.Evaluate("", env)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ev.Evaluate("values[", env)
	assert.Error(t, err)
}

func TestCheckExpression(t *testing.T) {
	assert.NoError(t, CheckExpression(`len(nonzero) > 0 ? nonzero[0] : nil`))
	assert.Error(t, CheckExpression(""))
	assert.Error(t, CheckExpression("unknownVar + 1"))
}
