package pkg

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Credential environment variables for the package index, in the spirit of
// the usual publishing tools.
const (
	IndexUserVar  = "DIST_INDEX_USER"
	IndexTokenVar = "DIST_INDEX_TOKEN"
)

// Uploader publishes built artifacts to a package index.
type Uploader struct {
	IndexURL string
	Username string
	Token    string
	Client   *http.Client
}

// NewUploader builds an Uploader for the configured index. Credentials come
// from the environment; a missing index URL is an error since there is no
// sensible default.
func NewUploader(cfg *Config) (*Uploader, error) {
	if cfg.IndexURL == "" {
		return nil, eris.Errorf("%s does not set an index URL, nothing to upload to", ConfigName)
	}

	return &Uploader{
		IndexURL: cfg.IndexURL,
		Username: os.Getenv(IndexUserVar),
		Token:    os.Getenv(IndexTokenVar),
		Client: &http.Client{
			Timeout: time.Minute * 30,
		},
	}, nil
}

// UploadAll publishes every artifact listed in the checksum manifest. The
// first failure aborts the remaining uploads.
func (u *Uploader) UploadAll(ctx context.Context, outDir string, cfg *Config) error {
	artifacts, err := ReadSums(outDir)
	if err != nil {
		return err
	}

	for _, artifact := range artifacts {
		PrintSubtask("upload " + filepath.Base(artifact.Path))
		err = u.Upload(ctx, artifact, cfg)
		if err != nil {
			return eris.Wrapf(err, "Failed to upload %s", filepath.Base(artifact.Path))
		}
	}

	return nil
}

// Upload publishes a single artifact as a multipart POST.
func (u *Uploader) Upload(ctx context.Context, artifact Artifact, cfg *Config) error {
	handle, err := os.Open(artifact.Path)
	if err != nil {
		return eris.Wrapf(err, "Failed to open artifact %s", artifact.Path)
	}
	defer handle.Close()

	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)

	fields := map[string]string{
		"name":          cfg.Name,
		"version":       cfg.Version,
		"sha256_digest": artifact.Sha256,
	}
	for field, value := range fields {
		err = form.WriteField(field, value)
		if err != nil {
			return eris.Wrapf(err, "Failed to write form field %s", field)
		}
	}

	part, err := form.CreateFormFile("content", filepath.Base(artifact.Path))
	if err != nil {
		return eris.Wrap(err, "Failed to create form file")
	}

	_, err = io.Copy(part, handle)
	if err != nil {
		return eris.Wrapf(err, "Failed to read artifact %s", artifact.Path)
	}

	err = form.Close()
	if err != nil {
		return eris.Wrap(err, "Failed to finalize form")
	}

	bar := getProgressBar(int64(body.Len()), "     upload")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.IndexURL,
		io.TeeReader(body, bar))
	if err != nil {
		return eris.Wrapf(err, "Failed to build request for %s", u.IndexURL)
	}

	req.ContentLength = int64(body.Len())
	req.Header.Set("Content-Type", form.FormDataContentType())
	if u.Username != "" || u.Token != "" {
		req.SetBasicAuth(u.Username, u.Token)
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "Upload to %s failed", u.IndexURL)
	}
	defer resp.Body.Close()
	bar.Finish()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return eris.Errorf("Index %s rejected the upload with status %s: %s",
			u.IndexURL, resp.Status, strings.TrimSpace(string(details)))
	}

	return nil
}
