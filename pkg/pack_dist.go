package pkg

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// SumsName is the checksum manifest written next to the artifacts.
const SumsName = "SHA256SUMS"

// Artifact is a built, distributable package file.
type Artifact struct {
	Path   string
	Sha256 string
}

// sourceEntry is a single file scheduled for packing. Rel uses forward
// slashes and is the path inside the archive (below the name-version root).
type sourceEntry struct {
	Abs string
	Rel string
}

func (c *Config) excluded(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range c.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func collectSources(projectRoot string, cfg *Config) ([]sourceEntry, error) {
	skipDirs := map[string]bool{
		cfg.EnvDir: true,
		cfg.OutDir: true,
		".git":     true,
	}

	seen := map[string]bool{}
	entries := make([]sourceEntry, 0)

	addFile := func(abs, rel string) {
		rel = filepath.ToSlash(rel)
		if seen[rel] || cfg.excluded(rel) {
			return
		}
		seen[rel] = true
		entries = append(entries, sourceEntry{Abs: abs, Rel: rel})
	}

	for _, source := range cfg.Sources {
		srcPath := filepath.Join(projectRoot, source)
		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to check source %s", source)
		}

		if !info.IsDir() {
			rel, err := filepath.Rel(projectRoot, srcPath)
			if err != nil {
				return nil, err
			}
			addFile(srcPath, rel)
			continue
		}

		err = filepath.WalkDir(srcPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(projectRoot, path)
			if err != nil {
				return err
			}

			if d.IsDir() {
				if skipDirs[rel] || cfg.excluded(filepath.ToSlash(rel)) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			addFile(path, rel)
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to walk source %s", source)
		}
	}

	if len(entries) == 0 {
		return nil, eris.New("No source files matched, nothing to pack")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}

// PackDist packs the configured sources into one archive per configured
// format and rewrites the checksum manifest. It returns the built artifacts.
func PackDist(ctx context.Context, projectRoot string, cfg *Config) ([]Artifact, error) {
	entries, err := collectSources(projectRoot, cfg)
	if err != nil {
		return nil, err
	}

	outDir := cfg.OutPath(projectRoot)
	err = os.MkdirAll(outDir, 0770)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create output directory %s", outDir)
	}

	prefix := fmt.Sprintf("%s-%s", cfg.Name, cfg.Version)
	artifacts := make([]Artifact, 0, len(cfg.Formats))

	for _, format := range cfg.Formats {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		dest := filepath.Join(outDir, prefix+"."+format)
		PrintSubtask("pack " + filepath.Base(dest))

		digest, err := writeArchive(dest, format, prefix, entries)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to build artifact %s", dest)
		}

		artifacts = append(artifacts, Artifact{Path: dest, Sha256: digest})
	}

	err = WriteSums(outDir, artifacts)
	if err != nil {
		return nil, err
	}

	return artifacts, nil
}

func writeArchive(dest, format, prefix string, entries []sourceEntry) (string, error) {
	handle, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to create %s", dest)
	}
	defer handle.Close()

	hash := sha256.New()
	sink := io.MultiWriter(handle, hash)

	switch format {
	case "zip":
		err = writeZip(sink, prefix, entries)
	case "tar.gz":
		compressor := gzip.NewWriter(sink)
		err = writeTar(compressor, prefix, entries)
		if err == nil {
			err = compressor.Close()
		}
	case "tar.xz":
		compressor, xzErr := xz.NewWriter(sink)
		if xzErr != nil {
			return "", xzErr
		}
		err = writeTar(compressor, prefix, entries)
		if err == nil {
			err = compressor.Close()
		}
	case "tar.br":
		compressor := brotli.NewWriterLevel(sink, brotli.BestCompression)
		err = writeTar(compressor, prefix, entries)
		if err == nil {
			err = compressor.Close()
		}
	default:
		return "", eris.Errorf("unsupported artifact format %s", format)
	}

	if err != nil {
		return "", err
	}

	err = handle.Close()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func writeTar(w io.Writer, prefix string, entries []sourceEntry) error {
	archive := tar.NewWriter(w)

	for _, entry := range entries {
		info, err := os.Stat(entry.Abs)
		if err != nil {
			return eris.Wrapf(err, "Failed to check %s", entry.Abs)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return eris.Wrapf(err, "Failed to build tar header for %s", entry.Rel)
		}
		header.Name = prefix + "/" + entry.Rel

		err = archive.WriteHeader(header)
		if err != nil {
			return eris.Wrapf(err, "Failed to write tar header for %s", entry.Rel)
		}

		handle, err := os.Open(entry.Abs)
		if err != nil {
			return eris.Wrapf(err, "Failed to open %s", entry.Abs)
		}

		_, err = io.Copy(archive, handle)
		handle.Close()
		if err != nil {
			return eris.Wrapf(err, "Failed to pack file %s", entry.Rel)
		}
	}

	return archive.Close()
}

func writeZip(w io.Writer, prefix string, entries []sourceEntry) error {
	archive := zip.NewWriter(w)

	for _, entry := range entries {
		info, err := os.Stat(entry.Abs)
		if err != nil {
			return eris.Wrapf(err, "Failed to check %s", entry.Abs)
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return eris.Wrapf(err, "Failed to build zip header for %s", entry.Rel)
		}
		header.Name = prefix + "/" + entry.Rel
		header.Method = zip.Deflate

		itemWriter, err := archive.CreateHeader(header)
		if err != nil {
			return eris.Wrapf(err, "Failed to write zip header for %s", entry.Rel)
		}

		handle, err := os.Open(entry.Abs)
		if err != nil {
			return eris.Wrapf(err, "Failed to open %s", entry.Abs)
		}

		_, err = io.Copy(itemWriter, handle)
		handle.Close()
		if err != nil {
			return eris.Wrapf(err, "Failed to pack file %s", entry.Rel)
		}
	}

	return archive.Close()
}

// WriteSums rewrites the SHA256SUMS manifest for the given artifacts.
func WriteSums(outDir string, artifacts []Artifact) error {
	var builder strings.Builder
	for _, artifact := range artifacts {
		builder.WriteString(artifact.Sha256)
		builder.WriteString("  ")
		builder.WriteString(filepath.Base(artifact.Path))
		builder.WriteString("\n")
	}

	sumsPath := filepath.Join(outDir, SumsName)
	err := os.WriteFile(sumsPath, []byte(builder.String()), os.FileMode(0660))
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", sumsPath)
	}

	return nil
}

// ReadSums loads the checksum manifest from the output directory and
// resolves the listed artifacts. A missing manifest or missing artifact file
// is an error since the upload step must not publish unverified files.
func ReadSums(outDir string) ([]Artifact, error) {
	sumsPath := filepath.Join(outDir, SumsName)
	data, err := os.ReadFile(sumsPath)
	if err != nil {
		return nil, eris.Wrapf(err, "No artifacts to publish, run a build first (missing %s)", sumsPath)
	}

	artifacts := make([]Artifact, 0)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, eris.Errorf("Malformed line in %s: %s", sumsPath, line)
		}

		artifactPath := filepath.Join(outDir, parts[1])
		_, err := os.Stat(artifactPath)
		if err != nil {
			return nil, eris.Wrapf(err, "Artifact %s is listed in %s but missing", parts[1], SumsName)
		}

		artifacts = append(artifacts, Artifact{Path: artifactPath, Sha256: parts[0]})
	}

	if len(artifacts) == 0 {
		return nil, eris.Errorf("No artifacts to publish, %s is empty", sumsPath)
	}

	return artifacts, nil
}
