package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfParsesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"main":{"greet":{"_func":"const","value":"hi"}}}`), 0o644))

	raw, err := LoadConf(path)
	require.NoError(t, err)

	main := raw["main"].(map[string]any)
	greet := main["greet"].(map[string]any)
	assert.Equal(t, "hi", greet["value"])
}

func TestLoadConfParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	content := "main:\n  greet:\n    _func: const\n    value: hi\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	raw, err := LoadConf(path)
	require.NoError(t, err)

	main := raw["main"].(map[string]any)
	greet := main["greet"].(map[string]any)
	assert.Equal(t, "hi", greet["value"])
}

func TestLoadFlowCachesByAbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"main":{"greet":{"_func":"const","value":"hi"}}}`), 0o644))

	session := newTestSession(t)
	a, err := session.LoadFlow(path)
	require.NoError(t, err)
	b, err := session.LoadFlow(path)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestMakeFlowSkipsCommentKeys(t *testing.T) {
	session := newTestSession(t)
	raw := map[string]any{
		"#note": "ignored",
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi"},
		},
	}
	flowDef, err := session.MakeFlow("comment.json", raw)
	require.NoError(t, err)
	_, err = flowDef.FindNode("main.greet")
	assert.NoError(t, err)
}
