package eval

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluator is the default Evaluator implementation, backed by
// github.com/google/cel-go. It replaces flowfish's dependency on
// `simpleeval`: expressions see `input` (the node's by-value/by-reference
// output) and any extra variables passed in through vars (mirroring the
// **kwargs map_simpleeval folds into its expression namespace).
//
// Grounded on the teacher's dsl/cel/cel.go (same dynamic-variable,
// parse-check-program-eval pipeline); this rewrite drops the graph-specific
// has_tool_calls() convenience function, which belongs to the teacher's
// agent domain, not this engine.
type CELEvaluator struct {
	env *celgo.Env
}

// NewCELEvaluator builds a CEL environment that declares two variables for
// every expression evaluated through it: `input` and `vars`, the map of
// extra variables (read as vars.name).
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := celgo.NewEnv(
		celgo.Variable("input", celgo.DynType),
		celgo.Variable("vars", celgo.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel: failed to create environment: %w", err)
	}
	return &CELEvaluator{env: env}, nil
}

// Eval implements Evaluator.
func (c *CELEvaluator) Eval(expr string, input any, vars map[string]any) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("cel: expression is empty")
	}

	ast, issues := c.env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: parse error: %w", issues.Err())
	}

	checked, issues := c.env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: type-check error: %w", issues.Err())
	}

	prg, err := c.env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("cel: program build error: %w", err)
	}

	if vars == nil {
		vars = map[string]any{}
	}
	out, _, err := prg.Eval(map[string]any{
		"input": input,
		"vars":  vars,
	})
	if err != nil {
		return nil, fmt.Errorf("cel: eval error: %w", err)
	}

	return normalize(out), nil
}

// normalize converts CEL evaluation results (ref.Val wrappers, CEL map/list
// types) into plain JSON-friendly Go values.
func normalize(v any) any {
	if rv, ok := v.(ref.Val); ok {
		return normalize(rv.Value())
	}
	switch t := v.(type) {
	case map[ref.Val]ref.Val:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprintf("%v", normalize(k))] = normalize(vv)
		}
		return out
	case []ref.Val:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}
