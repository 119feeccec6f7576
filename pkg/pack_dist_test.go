package pkg

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProject(t *testing.T) (string, *Config) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.py"), []byte("print('hi')\n"), 0660))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.pyc"), []byte{0x01}, 0660))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# example\n"), 0660))

	cfg := &Config{
		Name:    "example",
		Version: "1.0.0",
		Sources: []string{"src", "README.md"},
		Exclude: []string{"*.pyc"},
		Formats: []string{"tar.gz"},
	}
	cfg.applyDefaults()

	return root, cfg
}

func tarGzNames(t *testing.T, path string) []string {
	t.Helper()

	handle, err := os.Open(path)
	require.NoError(t, err)
	defer handle.Close()

	reader, err := gzip.NewReader(handle)
	require.NoError(t, err)

	names := make([]string, 0)
	archive := tar.NewReader(reader)
	for {
		item, err := archive.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, item.Name)
	}

	return names
}

func TestPackDistTarGz(t *testing.T) {
	root, cfg := setupProject(t)

	artifacts, err := PackDist(context.Background(), root, cfg)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	artifact := artifacts[0]
	assert.Equal(t, filepath.Join(root, "dist", "example-1.0.0.tar.gz"), artifact.Path)

	names := tarGzNames(t, artifact.Path)
	assert.Contains(t, names, "example-1.0.0/src/app.py")
	assert.Contains(t, names, "example-1.0.0/README.md")
	assert.NotContains(t, names, "example-1.0.0/src/app.pyc")
}

func TestPackDistChecksums(t *testing.T) {
	root, cfg := setupProject(t)

	artifacts, err := PackDist(context.Background(), root, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(artifacts[0].Path)
	require.NoError(t, err)

	digest := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(digest[:]), artifacts[0].Sha256)

	// the manifest lists the artifact with the same digest
	loaded, err := ReadSums(cfg.OutPath(root))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, artifacts[0].Sha256, loaded[0].Sha256)
	assert.Equal(t, artifacts[0].Path, loaded[0].Path)
}

func TestPackDistAllFormats(t *testing.T) {
	root, cfg := setupProject(t)
	cfg.Formats = []string{"tar.gz", "tar.xz", "tar.br", "zip"}

	artifacts, err := PackDist(context.Background(), root, cfg)
	require.NoError(t, err)
	require.Len(t, artifacts, 4)

	for _, artifact := range artifacts {
		info, err := os.Stat(artifact.Path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	// spot-check the zip contents
	zipPath := filepath.Join(root, "dist", "example-1.0.0.zip")
	reader, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer reader.Close()

	names := make([]string, 0)
	for _, item := range reader.File {
		names = append(names, item.Name)
	}
	assert.Contains(t, names, "example-1.0.0/src/app.py")
}

func TestPackDistUnsupportedFormat(t *testing.T) {
	root, cfg := setupProject(t)
	cfg.Formats = []string{"rar"}

	_, err := PackDist(context.Background(), root, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported artifact format")
}

func TestPackDistSkipsEnvAndOutputDirs(t *testing.T) {
	root, cfg := setupProject(t)
	cfg.Sources = []string{"."}

	require.NoError(t, os.MkdirAll(filepath.Join(root, cfg.EnvDir, "bin"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(root, cfg.EnvDir, "bin", "tool"), []byte("bin"), 0770))

	// run twice so the output dir exists during the second walk
	_, err := PackDist(context.Background(), root, cfg)
	require.NoError(t, err)
	artifacts, err := PackDist(context.Background(), root, cfg)
	require.NoError(t, err)

	names := tarGzNames(t, artifacts[0].Path)
	for _, name := range names {
		assert.NotContains(t, name, cfg.EnvDir)
		assert.NotContains(t, name, "example-1.0.0/dist/")
	}
}

func TestPackDistNoSources(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{Name: "empty", Version: "0.0.1", Sources: []string{"missing"}}
	cfg.applyDefaults()
	cfg.Sources = []string{"missing"}

	_, err := PackDist(context.Background(), root, cfg)
	require.Error(t, err)
}

func TestReadSumsMissingManifest(t *testing.T) {
	_, err := ReadSums(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No artifacts to publish")
}

func TestReadSumsMissingArtifact(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outDir, SumsName),
		[]byte("deadbeef  gone-1.0.0.tar.gz\n"), 0660))

	_, err := ReadSums(outDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
