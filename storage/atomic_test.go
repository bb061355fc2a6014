package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFileCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	err := AtomicWriteFile(path, []byte(`{"a":1}`), 0o644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCopyFileSkipsUnmodified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, CopyFile(src, dst))
	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "scope"), ScopeDir("/data", "scope"))
	assert.Equal(t, filepath.Join("/data", "scope", "node.abc"), WorkDir("/data", "scope", "node.abc"))
	assert.Equal(t, filepath.Join("/data", "scope", "node.abc.data"), DataFile("/data", "scope", "node.abc"))
	assert.Equal(t, filepath.Join("/data", "scope", "node.abc.json"), ConfFile("/data", "scope", "node.abc"))
	assert.Equal(t, "", SyncFileManifest("", "scope", "node.abc"))
}
