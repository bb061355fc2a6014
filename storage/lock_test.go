package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockTryLockThenContended(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.lock")

	holder := NewFileLock(path)
	contended, err := holder.TryLock()
	require.NoError(t, err)
	assert.False(t, contended)

	other := NewFileLock(path)
	contended, err = other.TryLock()
	require.NoError(t, err)
	assert.True(t, contended)

	require.NoError(t, holder.Unlock())
}
