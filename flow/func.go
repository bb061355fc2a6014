package flow

import (
	"sort"
	"strings"
)

// ParamKind classifies a Func parameter the way Python's inspect.Parameter
// kinds do. Go cannot recover this from a function value by reflection
// (no names, no defaults, no kind), so every registered Func declares its
// parameter list by hand.
type ParamKind int

const (
	// PositionalOnly parameters may only be bound positionally.
	PositionalOnly ParamKind = iota
	// PositionalOrKeyword parameters may be bound either way.
	PositionalOrKeyword
	// VarPositional collects any remaining positional arguments (Python *args).
	VarPositional
	// KeywordOnly parameters must be bound by name.
	KeywordOnly
	// VarKeyword collects any remaining keyword arguments (Python **kwargs).
	VarKeyword
)

// Param describes one parameter of a registered Func.
type Param struct {
	Name       string
	Kind       ParamKind
	Default    any
	HasDefault bool
}

// CallArgs is the bound-argument bag passed to a Func's implementation:
// positional args in declared order, the variadic tail (if any), and
// keyword args for everything else -- the Go analogue of Python's
// call(*args, **kwargs) split.
type CallArgs struct {
	Pos map[string]any
	Var []any
	Key map[string]any
}

// Impl is the underlying Go callable a Func wraps. Implementations that
// want to be treated as a generator (fresh iteration on every call, never
// memoized as a single value -- see Reiterable) return a *Generator.
type Impl func(CallArgs) (any, error)

// Func is a registered, introspectable callable: a stable dotted name, its
// ordered parameter list (with kinds and declared defaults), and the Go
// implementation. It mirrors flowfish.func.Func.
type Func struct {
	Name   string
	Params []Param
	Impl   Impl
}

// Defaults returns the declared default value for every parameter that has
// one, keyed by parameter name -- used for NodeConf's default-injection
// rewrite pass.
func (f *Func) Defaults() map[string]any {
	defs := make(map[string]any)
	for _, p := range f.Params {
		if p.HasDefault {
			defs[p.Name] = p.Default
		}
	}
	return defs
}

func (f *Func) positionalParams() []Param {
	var out []Param
	for _, p := range f.Params {
		if p.Kind == PositionalOnly || p.Kind == PositionalOrKeyword {
			out = append(out, p)
		}
	}
	return out
}

// splitArgs binds a flat keyword-argument map onto f's declared parameters,
// the Go analogue of flowfish.func._split_args. Positional parameters are
// filled from args (by declared order) first, keyword parameters second;
// unknown keys become keyword args. Returns the list of required
// parameters that remain unbound.
func (f *Func) splitArgs(args map[string]any) (pos map[string]any, varArgs []any, key map[string]any, missing []string) {
	pos = make(map[string]any)
	key = make(map[string]any)

	posParams := f.positionalParams()
	posIdx := make(map[string]int, len(posParams))
	for i, p := range posParams {
		posIdx[p.Name] = i
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ai, aok := posIdx[keys[i]]
		aj, bok := posIdx[keys[j]]
		if !aok {
			ai = -1
		}
		if !bok {
			aj = -1
		}
		return ai < aj
	})

	byName := make(map[string]Param, len(f.Params))
	for _, p := range f.Params {
		byName[p.Name] = p
	}

	for _, k := range keys {
		v := args[k]
		p, known := byName[k]
		if !known {
			key[k] = v
			continue
		}
		switch p.Kind {
		case PositionalOnly, PositionalOrKeyword:
			pos[k] = v
		case VarPositional:
			if vs, ok := v.([]any); ok {
				varArgs = append(varArgs, vs...)
			}
		default:
			key[k] = v
		}
	}

	for _, p := range posParams {
		if _, ok := pos[p.Name]; !ok && !p.HasDefault {
			missing = append(missing, p.Name)
		}
	}
	for _, p := range f.Params {
		if p.Kind == KeywordOnly && !p.HasDefault {
			if _, ok := key[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
	}

	return pos, varArgs, key, missing
}

// Call binds args onto f's parameters, applies declared defaults for
// anything missing-but-optional, and invokes the implementation. It
// returns an *ArgumentError if required parameters are unbound, matching
// flowfish.func.Func.call's "{name}() is missing arguments: [...]" message.
func (f *Func) Call(args map[string]any) (any, error) {
	pos, varArgs, key, missing := f.splitArgs(args)
	if len(missing) > 0 {
		return nil, newArgumentError("%s() is missing arguments: %s", f.Name, formatMissing(missing))
	}

	for _, p := range f.Params {
		if !p.HasDefault {
			continue
		}
		switch p.Kind {
		case PositionalOnly, PositionalOrKeyword:
			if _, ok := pos[p.Name]; !ok {
				pos[p.Name] = p.Default
			}
		case KeywordOnly:
			if _, ok := key[p.Name]; !ok {
				key[p.Name] = p.Default
			}
		}
	}

	callArgs := CallArgs{Pos: pos, Var: varArgs, Key: key}
	result, err := f.Impl(callArgs)
	if err != nil {
		return nil, err
	}
	if gen, ok := result.(*Generator); ok {
		return &Reiterable{produce: gen.Produce, args: callArgs}, nil
	}
	return result, nil
}

func formatMissing(missing []string) string {
	return "[" + strings.Join(quoteAll(missing), ", ") + "]"
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = "'" + s + "'"
	}
	return out
}

// Generator wraps an Impl that yields a sequence instead of a single value.
// Unlike a plain Impl, a Generator is never cached as a memoized value by
// the executor: every access re-invokes Produce with the original bound
// arguments, the Go analogue of flowfish.func.Regenerator /
// AsyncRegenerator (a fresh Python generator object on every call).
type Generator struct {
	Produce func(CallArgs) (func(yield func(any) bool), error)
}

// Reiterable is what Func.Call returns in place of a raw *Generator: the
// Produce function bound to the arguments this particular call resolved.
// Every Iter re-invokes Produce with those same bound arguments, yielding a
// fresh sequence each time rather than replaying one materialized
// iteration -- the Go analogue of flowfish.func.Regenerator /
// AsyncRegenerator, whose __call__ records *args/**kwargs once and whose
// __iter__ re-enters the underlying generator function on every use.
type Reiterable struct {
	produce func(CallArgs) (func(yield func(any) bool), error)
	args    CallArgs
}

// Iter produces a fresh iterator sequence by re-invoking Produce with the
// arguments this Reiterable was bound to, so consuming it twice (e.g. two
// separate & references to the same node) never exhausts a shared cursor.
func (r *Reiterable) Iter() (func(yield func(any) bool), error) {
	return r.produce(r.args)
}
