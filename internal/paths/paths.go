package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"go-gallery-archiver/internal/helpers"
)

// ItemDir builds the relative destination directory for one archived item:
// <folderName>/<sanitized category>/<content hash>. The returned path is
// always relative to the download root; the caller joins it.
func ItemDir(folderName, categoryKey, contentHash string) (string, error) {
	if folderName == "" {
		return "", fmt.Errorf("folder name is empty")
	}
	if contentHash == "" {
		return "", fmt.Errorf("content hash is empty")
	}

	rel := filepath.Join(
		helpers.SanitizeFolderName(folderName),
		helpers.SanitizeFolderName(categoryKey),
		contentHash,
	)

	cleaned := filepath.Clean(rel)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("destination layout resolved to an empty path (folder %q, category %q)", folderName, categoryKey)
	}
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	// Security check: prevent path traversal
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("destination path contains invalid sequence '..': %s", cleaned)
	}

	return cleaned, nil
}

// AssetFileName derives the on-disk name for one fetched asset from the final
// path segment of its URL, with the configured target extension swapped in.
func AssetFileName(rawURL, extension string) string {
	base := rawURL
	if idx := strings.LastIndex(base, "/"); idx != -1 {
		base = base[idx+1:]
	}
	if idx := strings.Index(base, "?"); idx != -1 {
		base = base[:idx]
	}
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	if base == "" {
		base = "asset"
	}
	ext := strings.TrimPrefix(extension, ".")
	return helpers.SanitizeFileName(base + "." + ext)
}
