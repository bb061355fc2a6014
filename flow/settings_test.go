package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFileIsEmpty(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)
	assert.Empty(t, settings)
}

func TestLoadSettingsParsesSectionsAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.ini")
	content := "# top comment\n" +
		"data_dir = ./data\n" +
		"; semicolon comment\n" +
		"[sync]\n" +
		"dir = /shared\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	v, ok := settings.Get("data_dir")
	assert.True(t, ok)
	assert.Equal(t, "./data", v)

	assert.Equal(t, "/shared", settings.GetDefault("sync.dir", "missing"))
	assert.Equal(t, "fallback", settings.GetDefault("nope", "fallback"))
}
