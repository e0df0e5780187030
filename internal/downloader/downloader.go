package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-gallery-archiver/internal/helpers"
	"go-gallery-archiver/internal/paths"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
)

// Downloader fetches gallery assets over HTTP.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		// Provide a default client if none is passed
		client = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}
	return &Downloader{
		client: client,
	}
}

// FetchAsset downloads one asset into destDir, deriving the filename from the
// URL's final path segment with the configured target extension. It downloads
// to a temporary file first and renames on success so a partial download
// never masquerades as a complete asset. Returns the final file path.
func (d *Downloader) FetchAsset(ctx context.Context, rawURL, destDir, extension string) (string, error) {
	fileName := paths.AssetFileName(rawURL, extension)
	finalPath := filepath.Join(destDir, fileName)

	if _, err := os.Stat(finalPath); err == nil {
		log.WithField("path", finalPath).Debug("Asset already present, skipping fetch")
		return finalPath, nil
	}

	if !helpers.CheckAndMakeDir(destDir) {
		return "", fmt.Errorf("%w: failed to create directory %s", ErrFileSystem, destDir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request for %s: %v", ErrHttpRequest, rawURL, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrHttpRequest, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: got %d for %s", ErrHttpStatus, resp.StatusCode, rawURL)
	}

	tmpPath := finalPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrFileSystem, tmpPath, err)
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: writing %s: %v", ErrFileSystem, tmpPath, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: closing %s: %v", ErrFileSystem, tmpPath, closeErr)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: renaming %s: %v", ErrFileSystem, tmpPath, err)
	}

	log.WithFields(log.Fields{
		"path": finalPath,
		"size": helpers.BytesToSize(uint64(written)),
	}).Debug("Asset downloaded")

	return finalPath, nil
}
