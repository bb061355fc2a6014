package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type upperRewriter struct{ baseRewriter }

func (upperRewriter) RewriteString(_ string, v string, _ int) (any, error) {
	out := make([]byte, len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out), nil
}

func TestRewriteAppliesStringTransform(t *testing.T) {
	in := map[string]any{"greeting": "hello", "nested": map[string]any{"x": "world"}}
	out, err := Rewrite(&upperRewriter{baseRewriter{maxDepth: -1}}, in)
	assert.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "HELLO", m["greeting"])
	nested := m["nested"].(map[string]any)
	assert.Equal(t, "WORLD", nested["x"])
}

type droppingRewriter struct{ baseRewriter }

func (droppingRewriter) DiscardItem(k string, _ any, _ int, _ map[string]any) bool {
	return k == "drop_me"
}

func TestRewriteDiscardsMarkedKeys(t *testing.T) {
	in := map[string]any{"keep": "a", "drop_me": "b"}
	out, err := Rewrite(&droppingRewriter{baseRewriter{maxDepth: -1}}, in)
	assert.NoError(t, err)
	m := out.(map[string]any)
	assert.Contains(t, m, "keep")
	assert.NotContains(t, m, "drop_me")
}

func TestRewriteMaxDepthStopsDescent(t *testing.T) {
	in := map[string]any{"a": map[string]any{"b": "x"}}
	out, err := Rewrite(&upperRewriter{baseRewriter{maxDepth: 0}}, in)
	assert.NoError(t, err)
	m := out.(map[string]any)
	nested := m["a"].(map[string]any)
	assert.Equal(t, "x", nested["b"])
}

func TestIsLinkLiteral(t *testing.T) {
	assert.True(t, isLinkLiteral("@foo"))
	assert.True(t, isLinkLiteral("&foo"))
	assert.False(t, isLinkLiteral("@@escaped"))
	assert.False(t, isLinkLiteral("&&escaped"))
	assert.False(t, isLinkLiteral("plain"))
}
