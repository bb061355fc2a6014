package flow

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// registerBuiltins installs the three functions every flow can call without
// explicit registration: get (identity passthrough, the default _func for a
// node with no function of its own), map (apply an expression to an input
// via the session's evaluator) and run (launch a subprocess and capture its
// stdout). Mirrors flowfish.builtins.
func registerBuiltins(s *Session) {
	s.RegisterFunc(&Func{
		Name: "get",
		Params: []Param{
			{Name: "input", Kind: PositionalOrKeyword, Default: nil, HasDefault: true},
		},
		Impl: func(args CallArgs) (any, error) {
			return args.Pos["input"], nil
		},
	})

	s.RegisterFunc(&Func{
		Name: "map",
		Params: []Param{
			{Name: "input", Kind: PositionalOrKeyword},
			{Name: "expr", Kind: PositionalOrKeyword},
			{Name: "vars", Kind: KeywordOnly, Default: map[string]any{}, HasDefault: true},
		},
		Impl: func(args CallArgs) (any, error) {
			expr, _ := args.Pos["expr"].(string)
			vars, _ := args.Key["vars"].(map[string]any)
			return s.evaluator.Eval(expr, args.Pos["input"], vars)
		},
	})

	s.RegisterFunc(&Func{
		Name: "run",
		Params: []Param{
			{Name: "cmd", Kind: PositionalOrKeyword},
			{Name: "args", Kind: VarPositional, Default: []any{}, HasDefault: true},
			{Name: "input", Kind: KeywordOnly, Default: "", HasDefault: true},
			{Name: "dir", Kind: KeywordOnly, Default: "", HasDefault: true},
		},
		Impl: runBuiltin,
	})
}

// runBuiltin shells out to an external command, feeding it a string (or
// the string form of a non-string value) on stdin and returning its
// trimmed stdout. Deliberately minimal: no shell interpolation, no
// environment pass-through beyond the current process's -- this engine's
// Non-goals exclude a full subprocess sandboxing layer.
func runBuiltin(args CallArgs) (any, error) {
	cmdName, _ := args.Pos["cmd"].(string)
	var cmdArgs []string
	for _, a := range args.Var {
		if s, ok := a.(string); ok {
			cmdArgs = append(cmdArgs, s)
		}
	}

	cmd := exec.Command(cmdName, cmdArgs...)
	if dir, _ := args.Key["dir"].(string); dir != "" {
		cmd.Dir = dir
	}
	if input, ok := args.Key["input"]; ok {
		switch v := input.(type) {
		case string:
			cmd.Stdin = strings.NewReader(v)
		case nil:
		default:
			cmd.Stdin = strings.NewReader(fmt.Sprint(v))
		}
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, wrapFlowError(err, "run %s", cmdName)
	}
	return strings.TrimSpace(stdout.String()), nil
}
