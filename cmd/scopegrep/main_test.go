package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("text"))
	assert.NoError(t, validateFormat("json"))
	assert.Error(t, validateFormat("xml"))
	assert.Error(t, validateFormat(""))
}

func TestResolveTargetDir_DefaultsToCwd(t *testing.T) {
	dir, err := resolveTargetDir(nil)
	require.NoError(t, err)
	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, dir)
}

func TestResolveTargetDir_Explicit(t *testing.T) {
	tmp := t.TempDir()
	dir, err := resolveTargetDir([]string{tmp})
	require.NoError(t, err)
	assert.Equal(t, tmp, dir)
}

func TestResolveTargetDir_Missing(t *testing.T) {
	_, err := resolveTargetDir([]string{"/nonexistent/dir"})
	require.Error(t, err)
}

func TestResolveTargetDir_NotADirectory(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := resolveTargetDir([]string{file})
	require.Error(t, err)
}
