package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newAddFunc() *Func {
	return &Func{
		Name: "add",
		Params: []Param{
			{Name: "a", Kind: PositionalOrKeyword},
			{Name: "b", Kind: PositionalOrKeyword, Default: float64(1), HasDefault: true},
		},
		Impl: func(args CallArgs) (any, error) {
			a := args.Pos["a"].(float64)
			b := args.Pos["b"].(float64)
			return a + b, nil
		},
	}
}

func TestFuncCallAppliesDefault(t *testing.T) {
	fn := newAddFunc()
	result, err := fn.Call(map[string]any{"a": float64(2)})
	assert.NoError(t, err)
	assert.Equal(t, float64(3), result)
}

func TestFuncCallOverridesDefault(t *testing.T) {
	fn := newAddFunc()
	result, err := fn.Call(map[string]any{"a": float64(2), "b": float64(10)})
	assert.NoError(t, err)
	assert.Equal(t, float64(12), result)
}

func TestFuncCallMissingRequiredArgument(t *testing.T) {
	fn := newAddFunc()
	_, err := fn.Call(map[string]any{})
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
	assert.Contains(t, argErr.Error(), "'a'")
}

func TestFuncDefaults(t *testing.T) {
	fn := newAddFunc()
	assert.Equal(t, map[string]any{"b": float64(1)}, fn.Defaults())
}
