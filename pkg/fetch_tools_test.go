package pkg

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toolArchive builds a tar.gz holding a single "linter" file and returns the
// archive bytes plus their sha256 digest.
func toolArchive(t *testing.T) ([]byte, string) {
	t.Helper()

	buf := new(bytes.Buffer)
	compressor := gzip.NewWriter(buf)
	archive := tar.NewWriter(compressor)

	content := []byte("#!/bin/sh\nexit 0\n")
	require.NoError(t, archive.WriteHeader(&tar.Header{
		Name: "linter",
		Mode: 0755,
		Size: int64(len(content)),
	}))
	_, err := archive.Write(content)
	require.NoError(t, err)
	require.NoError(t, archive.Close())
	require.NoError(t, compressor.Close())

	digest := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(digest[:])
}

func toolFixture(t *testing.T, sha string, serverURL string) (string, *Config, Environment) {
	t.Helper()

	root := t.TempDir()
	cfg := &Config{
		Name:    "example",
		Version: "1.0.0",
		Tools: map[string]ToolSpec{
			"linter": {
				URL:    serverURL + "/linter.tar.gz",
				Sha256: sha,
				Dest:   "bin",
			},
		},
	}
	cfg.applyDefaults()

	env := NewEnvironment(root, cfg)
	require.NoError(t, os.MkdirAll(env.BinPath(), 0770))

	return root, cfg, env
}

func TestFetchToolsDownloadsAndExtracts(t *testing.T) {
	t.Setenv("CI", "true")

	archive, sha := toolArchive(t)
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(archive)
	}))
	defer server.Close()

	root, cfg, env := toolFixture(t, sha, server.URL)

	err := FetchTools(context.Background(), root, cfg, env, false)
	require.NoError(t, err)

	assert.Equal(t, 1, requests)
	assert.FileExists(t, filepath.Join(env.BinPath(), "linter"))
	assert.FileExists(t, filepath.Join(env.Dir, toolStampsName))

	// a second run finds the stamp and the dest dir and skips the download
	err = FetchTools(context.Background(), root, cfg, env, false)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestFetchToolsChecksumMismatch(t *testing.T) {
	t.Setenv("CI", "true")

	archive, _ := toolArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	root, cfg, env := toolFixture(t, "0000000000000000000000000000000000000000000000000000000000000000", server.URL)

	err := FetchTools(context.Background(), root, cfg, env, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Checksum check failed")
}

func TestFetchToolsMissingChecksum(t *testing.T) {
	t.Setenv("CI", "true")

	root, cfg, env := toolFixture(t, "", "http://127.0.0.1:0")

	err := FetchTools(context.Background(), root, cfg, env, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't have a checksum")
}

func TestFetchToolsNoTools(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{Name: "example", Version: "1.0.0"}
	cfg.applyDefaults()

	err := FetchTools(context.Background(), root, cfg, NewEnvironment(root, cfg), false)
	require.NoError(t, err)
}
