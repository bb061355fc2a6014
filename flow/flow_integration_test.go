package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	session, err := Open(WithDataDir(t.TempDir()))
	require.NoError(t, err)

	session.RegisterFunc(&Func{
		Name: "const",
		Params: []Param{
			{Name: "value", Kind: PositionalOrKeyword},
		},
		Impl: func(args CallArgs) (any, error) {
			return args.Pos["value"], nil
		},
	})
	session.RegisterFunc(&Func{
		Name: "upper",
		Params: []Param{
			{Name: "input", Kind: PositionalOrKeyword},
		},
		Impl: func(args CallArgs) (any, error) {
			return strings.ToUpper(args.Pos["input"].(string)), nil
		},
	})
	session.RegisterFunc(&Func{
		Name: "tokenize",
		Params: []Param{
			{Name: "input", Kind: PositionalOrKeyword},
		},
		Impl: func(args CallArgs) (any, error) {
			input, _ := args.Pos["input"].(string)
			words := strings.Fields(input)
			out := make([]any, len(words))
			for i, w := range words {
				out[i] = w
			}
			return out, nil
		},
	})
	session.RegisterFunc(&Func{
		Name: "analyzer",
		Params: []Param{
			{Name: "tokenize", Kind: PositionalOrKeyword},
			{Name: "input", Kind: PositionalOrKeyword},
		},
		Impl: func(args CallArgs) (any, error) {
			ref, ok := args.Pos["tokenize"].(NodeRef)
			if !ok {
				return nil, newFlowError("analyzer: tokenize param is not a NodeRef")
			}
			return ref(args.Pos["input"])
		},
	})
	session.RegisterFunc(&Func{
		Name: "numbers",
		Impl: func(CallArgs) (any, error) {
			return &Generator{
				Produce: func(CallArgs) (func(yield func(any) bool), error) {
					return func(yield func(any) bool) {
						for i := 0; i < 10; i++ {
							if !yield(float64(i)) {
								return
							}
						}
					}, nil
				},
			}, nil
		},
	})
	session.RegisterFunc(&Func{
		Name: "consume",
		Params: []Param{
			{Name: "iterable", Kind: PositionalOrKeyword},
		},
		Impl: func(args CallArgs) (any, error) {
			r, ok := args.Pos["iterable"].(*Reiterable)
			if !ok {
				return nil, newFlowError("consume: iterable param is not a Reiterable")
			}
			seq, err := r.Iter()
			if err != nil {
				return nil, err
			}
			out := []any{}
			seq(func(v any) bool {
				out = append(out, v)
				return true
			})
			return out, nil
		},
	})
	return session
}

func TestFlowCallResolvesLinkedNodes(t *testing.T) {
	session := newTestSession(t)

	raw := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
			"shout": map[string]any{"_func": "upper", "input": "@greet"},
		},
	}
	flowDef, err := session.MakeFlow("test.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("main.shout")
	require.NoError(t, err)

	result, err := node.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "HI", result)
}

func TestFlowNodeHashIsStableAcrossLoads(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
	}

	flowA, err := session.MakeFlow("a.json", raw)
	require.NoError(t, err)
	nodeA, err := flowA.FindNode("main.greet")
	require.NoError(t, err)

	session2 := newTestSession(t)
	flowB, err := session2.MakeFlow("a.json", raw)
	require.NoError(t, err)
	nodeB, err := flowB.FindNode("main.greet")
	require.NoError(t, err)

	assert.Equal(t, nodeA.Hash(), nodeB.Hash())
	assert.NotEmpty(t, nodeA.Hash())
}

func TestFlowSelfDotLinkIsTolerated(t *testing.T) {
	// "@." is the deliberate self-reference idiom (e.g. for a node that
	// wants its own work directory), not a dependency cycle -- it must
	// not trip the graph's self-link rejection.
	session := newTestSession(t)
	raw := map[string]any{
		"main": map[string]any{
			"self": map[string]any{"_func": "const", "value": "@."},
		},
	}
	_, err := session.MakeFlow("self.json", raw)
	assert.NoError(t, err)
}

func TestFlowMissingNodeLinkIsReported(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"main": map[string]any{
			"shout": map[string]any{"_func": "upper", "input": "@nope"},
		},
	}
	_, err := session.MakeFlow("missing.json", raw)
	assert.Error(t, err)
}

// TestFlowByRefLinkIsLazy is the tokenize/analyzer scenario: analyzer
// receives tokenize as a callable via "&tokenize" and invokes it itself with
// its own "input" value, instead of tokenize's node ever being called
// eagerly with its own (unused) config.
func TestFlowByRefLinkIsLazy(t *testing.T) {
	session := newTestSession(t)
	var calls int
	session.RegisterFunc(&Func{
		Name: "counting_tokenize",
		Params: []Param{
			{Name: "input", Kind: PositionalOrKeyword},
		},
		Impl: func(args CallArgs) (any, error) {
			calls++
			input, _ := args.Pos["input"].(string)
			words := strings.Fields(input)
			out := make([]any, len(words))
			for i, w := range words {
				out[i] = w
			}
			return out, nil
		},
	})

	raw := map[string]any{
		"test": map[string]any{
			"tokenize": map[string]any{"_func": "counting_tokenize", "input": "placeholder"},
			"analyzer": map[string]any{
				"_func":    "analyzer",
				"tokenize": "&tokenize",
				"input":    "hello world",
			},
		},
	}
	flowDef, err := session.MakeFlow("byref.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("test.analyzer")
	require.NoError(t, err)

	result, err := node.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"hello", "world"}, result)
	assert.Equal(t, 1, calls, "tokenize must be invoked exactly once, lazily, by analyzer's own ref call")
}

// TestGeneratorCallTwiceGivesFreshIteration is the numbers generator
// scenario: calling a generator-backed node a second time must not resume
// or replay an exhausted iteration -- it re-invokes Produce and yields the
// same fresh sequence again.
func TestGeneratorCallTwiceGivesFreshIteration(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"test": map[string]any{
			"numbers": map[string]any{"_func": "numbers"},
		},
	}
	flowDef, err := session.MakeFlow("generator.json", raw)
	require.NoError(t, err)
	node, err := flowDef.FindNode("test.numbers")
	require.NoError(t, err)

	collect := func(v any) []any {
		r, ok := v.(*Reiterable)
		require.True(t, ok)
		seq, err := r.Iter()
		require.NoError(t, err)
		var got []any
		seq(func(item any) bool {
			got = append(got, item)
			return true
		})
		return got
	}

	first, err := node.Call(nil)
	require.NoError(t, err)
	second, err := node.Call(nil)
	require.NoError(t, err)

	assert.Equal(t, collect(first), collect(second))
	assert.Len(t, collect(first), 10)
}

// TestGeneratorTwoConsumersEachGetFullSequence is the generator multi-use
// scenario: two nodes ("@numbers") each consume the same generator-backed
// node independently, and both see the complete, identical sequence rather
// than splitting or exhausting a shared cursor.
func TestGeneratorTwoConsumersEachGetFullSequence(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"test": map[string]any{
			"numbers": map[string]any{"_func": "numbers"},
			"foo":     map[string]any{"_func": "consume", "iterable": "@numbers"},
			"bar":     map[string]any{"_func": "consume", "iterable": "@numbers"},
		},
	}
	flowDef, err := session.MakeFlow("generator_consumers.json", raw)
	require.NoError(t, err)

	fooNode, err := flowDef.FindNode("test.foo")
	require.NoError(t, err)
	barNode, err := flowDef.FindNode("test.bar")
	require.NoError(t, err)

	foo, err := fooNode.Call(nil)
	require.NoError(t, err)
	bar, err := barNode.Call(nil)
	require.NoError(t, err)

	assert.Equal(t, foo, bar)
	assert.Len(t, foo, 10)
}
