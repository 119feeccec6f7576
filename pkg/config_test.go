package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigName), []byte(content), 0660))
}

func TestLoadConfigDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
name: example
version: 1.2.3
`)

	cfg, err := LoadConfig(root)
	require.NoError(t, err)

	assert.Equal(t, "example", cfg.Name)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, ".dist-env", cfg.EnvDir)
	assert.Equal(t, "dist", cfg.OutDir)
	assert.Equal(t, []string{"tar.gz"}, cfg.Formats)
	assert.Equal(t, []string{"."}, cfg.Sources)

	assert.Equal(t, filepath.Join(root, ".dist-env"), cfg.EnvPath(root))
	assert.Equal(t, filepath.Join(root, "dist"), cfg.OutPath(root))
}

func TestLoadConfigFull(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
name: example
version: 0.1.0
envDir: .env
outDir: build
formats: [zip, tar.xz]
sources: [src, README.md]
exclude: ["*.tmp"]
indexUrl: https://index.example.com/upload
vars:
  CHANNEL: stable
tools:
  formatter:
    url: https://example.com/formatter-{CHANNEL}.tar.gz
    sha256: abc123
    dest: bin
    strip: 1
    markExec: [formatter]
    if: linux
`)

	cfg, err := LoadConfig(root)
	require.NoError(t, err)

	assert.Equal(t, ".env", cfg.EnvDir)
	assert.Equal(t, "build", cfg.OutDir)
	assert.Equal(t, []string{"zip", "tar.xz"}, cfg.Formats)
	assert.Equal(t, "https://index.example.com/upload", cfg.IndexURL)
	assert.Equal(t, "stable", cfg.Vars["CHANNEL"])

	tool := cfg.Tools["formatter"]
	assert.Equal(t, "abc123", tool.Sha256)
	assert.Equal(t, 1, tool.Strip)
	assert.Equal(t, []string{"formatter"}, tool.MarkExec)
	assert.Equal(t, "linux", tool.Condition)
}

func TestLoadConfigMissingName(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `version: 1.0.0`)

	_, err := LoadConfig(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project name")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestGetProjectRootFindsConfig(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "name: example\nversion: 1.0.0\n")

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0770))

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.Chdir(nested))

	found, err := GetProjectRoot()
	require.NoError(t, err)

	// resolve symlinks since t.TempDir may sit below one
	expected, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(found)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}
