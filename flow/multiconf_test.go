package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeConfsOverlaysLaterOverEarlier(t *testing.T) {
	base := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
		"shared": "keep",
	}
	overlay := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"value": "bye"},
		},
	}

	merged := MergeConfs(base, overlay)

	mainScope := merged["main"].(map[string]any)
	greet := mainScope["greet"].(map[string]any)
	assert.Equal(t, "bye", greet["value"])
	assert.Equal(t, "const", greet["_func"])
	assert.Equal(t, "keep", merged["shared"])
}

func TestMergeConfsNonDictReplacesRatherThanMerges(t *testing.T) {
	base := map[string]any{"list": []any{1, 2, 3}}
	overlay := map[string]any{"list": []any{9}}

	merged := MergeConfs(base, overlay)
	assert.Equal(t, []any{9}, merged["list"])
}
