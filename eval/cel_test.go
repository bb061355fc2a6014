package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELEvaluatorEvaluatesInput(t *testing.T) {
	ev, err := NewCELEvaluator()
	require.NoError(t, err)

	result, err := ev.Eval("input + 1.0", float64(41), nil)
	require.NoError(t, err)
	assert.Equal(t, float64(42), result)
}

func TestCELEvaluatorUsesVars(t *testing.T) {
	ev, err := NewCELEvaluator()
	require.NoError(t, err)

	result, err := ev.Eval("vars.name", nil, map[string]any{"name": "flowkit"})
	require.NoError(t, err)
	assert.Equal(t, "flowkit", result)
}

func TestCELEvaluatorReportsSyntaxError(t *testing.T) {
	ev, err := NewCELEvaluator()
	require.NoError(t, err)

	_, err = ev.Eval("input +", float64(1), nil)
	assert.Error(t, err)
}
