package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNodeRejectsUnqualifiedReference(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
	}
	flowDef, err := session.MakeFlow("find.json", raw)
	require.NoError(t, err)

	_, err = flowDef.FindNode("greet")
	assert.Error(t, err)
}

func TestFindNodeBySlugMatchesComputedHash(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
	}
	flowDef, err := session.MakeFlow("slug.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("main.greet")
	require.NoError(t, err)

	bySlug, err := flowDef.FindNodeBySlug(node.Slug())
	require.NoError(t, err)
	assert.Same(t, node, bySlug)

	_, err = flowDef.FindNodeBySlug("no-such-slug")
	assert.Error(t, err)
}
