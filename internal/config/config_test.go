package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsZeroConfig(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Languages)
	assert.Empty(t, cfg.Ignore)
	assert.Empty(t, cfg.DB)
}

func TestLoad_ParsesFields(t *testing.T) {
	dir := t.TempDir()
	yml := "languages:\n  - go\n  - python\nignore:\n  - generated\n  - build\ndb: .scopegrep/cache.db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python"}, cfg.Languages)
	assert.Equal(t, []string{"generated", "build"}, cfg.Ignore)
	assert.Equal(t, ".scopegrep/cache.db", cfg.DB)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("languages: [unclosed"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
