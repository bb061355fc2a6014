package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncTestSession(t *testing.T, dataDir, syncDir string) *Session {
	t.Helper()
	session, err := Open(WithDataDir(dataDir), WithSyncDir(syncDir))
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
	return session
}

func TestNodePushPullRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	syncDir := t.TempDir()
	session := newSyncTestSession(t, dataDir, syncDir)

	raw := map[string]any{
		"main": map[string]any{
			"greet": map[string]any{"_func": "const", "value": "hi", "_dump": true},
		},
	}
	flowDef, err := session.MakeFlow("sync.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("main.greet")
	require.NoError(t, err)

	_, err = node.Call(nil)
	require.NoError(t, err)
	require.True(t, node.Dumped())
	assert.False(t, node.Synced())

	require.NoError(t, node.Push())
	assert.True(t, node.Synced())

	node.Clear()
	require.NoError(t, node.Pull())

	result, err := node.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestNodePushTreePushesDependenciesDeepestFirst(t *testing.T) {
	dataDir := t.TempDir()
	syncDir := t.TempDir()
	session := newSyncTestSession(t, dataDir, syncDir)

	raw := map[string]any{
		"main": map[string]any{
			"base":   map[string]any{"_func": "const", "value": "a", "_dump": true},
			"middle": map[string]any{"_func": "const", "value": "@base", "_dump": true},
		},
	}
	flowDef, err := session.MakeFlow("tree.json", raw)
	require.NoError(t, err)

	node, err := flowDef.FindNode("main.middle")
	require.NoError(t, err)
	_, err = node.Call(nil)
	require.NoError(t, err)

	require.NoError(t, node.PushTree())

	base, err := flowDef.FindNode("main.base")
	require.NoError(t, err)
	assert.True(t, base.Synced())
	assert.True(t, node.Synced())
}
