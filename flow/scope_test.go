package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeBaseInheritsNodes(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"base": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
		"derived@base": map[string]any{},
	}
	flowDef, err := session.MakeFlow("scope-base.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("derived.greet")
	require.NoError(t, err)
	result, err := node.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestScopeBaseNodeOverridesSurviveMerge(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"base": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
		"derived@base": map[string]any{
			"greet": map[string]any{"value": "bye"},
		},
	}
	flowDef, err := session.MakeFlow("scope-override.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("derived.greet")
	require.NoError(t, err)
	result, err := node.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "bye", result)
}

func TestInvalidScopeNameIsRejected(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"9bad": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
	}
	_, err := session.MakeFlow("bad-scope.json", raw)
	assert.Error(t, err)
}

func TestDuplicateNodeNameIsRejected(t *testing.T) {
	session := newTestSession(t)
	flowDef := newFlowDef(session, "dup.json")
	scope, err := newScope(session, flowDef, "main", map[string]any{})
	require.NoError(t, err)
	require.NoError(t, scope.addNode("greet", map[string]any{"_func": "const", "value": "hi"}))
	err = scope.addNode("greet", map[string]any{"_func": "const", "value": "bye"})
	assert.Error(t, err)
}
