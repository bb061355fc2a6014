// Package eval defines the expression-evaluator seam the dataflow engine
// treats as a black box, plus a CEL-backed default implementation.
//
// flowfish (the Python original this package's caller is translated from)
// shells out to the third-party `simpleeval` library for the "map" builtin
// and the "@source/.:expr" / "@source:expr" link suffixes. Neither the
// expression language nor its feature set is part of the engine's contract
// (see spec.md's Non-goals); only the Eval seam is.
package eval

// Evaluator evaluates a single expression against an input value and a set
// of named variables, returning a JSON-like result. input is bound as the
// `input` variable for convenience (mirroring simpleeval's default `input`
// name in flowfish.builtins.map_simpleeval).
type Evaluator interface {
	Eval(expr string, input any, vars map[string]any) (any, error)
}

// Func is the Evaluator-compatible shape of a Go function, letting builtin
// functions like "get" participate in expressions without a named type.
type Func func(expr string, input any, vars map[string]any) (any, error)

// Eval implements Evaluator.
func (f Func) Eval(expr string, input any, vars map[string]any) (any, error) {
	return f(expr, input, vars)
}
