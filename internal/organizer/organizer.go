// Package organizer places extracted items on disk: it computes the content
// hash that names an item's directory, resolves the destination folder via
// the category mappings, writes the metadata pair, and fetches the assets.
package organizer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-gallery-archiver/internal/database"
	"go-gallery-archiver/internal/downloader"
	"go-gallery-archiver/internal/helpers"
	"go-gallery-archiver/internal/models"
	"go-gallery-archiver/internal/paths"
	"go-gallery-archiver/internal/prompt"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Metadata file names written into every item directory.
const (
	MetadataJSONName = "metadata.json"
	MetadataTextName = "metadata.txt"
)

// hashSeparator joins canonical hash fields. A unit separator cannot occur in
// text scraped from a rendered page.
const hashSeparator = "\x1f"

// ErrStore marks a persistence store failure. These are fatal to the run
// because resume and dedup correctness depend on the store; everything else
// is contained to the item.
var ErrStore = errors.New("persistence store failure")

// ItemIndexer receives successfully archived items for full-text search.
type ItemIndexer interface {
	IndexItem(itemID, storedPath string, data *models.ItemData) error
}

// Hash computes the content address of an item: a blake3 digest over the
// canonicalized generation parameters, base64url-encoded for use as a
// directory name. Style modifiers are serialized as name|link|weight and
// sorted so enumeration order does not change the hash. The seed is excluded
// unless includeSeed is set, so generations differing only by seed collapse
// into one directory.
func Hash(data *models.ItemData, includeSeed bool) string {
	parts := []string{
		data.Prompt,
		data.Method,
		data.Steps,
		data.Cfg,
		data.Size.Ratio,
		data.Size.Resolution,
		data.Model.Name,
		data.Model.Link,
	}
	if includeSeed {
		parts = append(parts, data.Seed)
	}

	modifiers := make([]string, 0, len(data.Loras))
	for _, lora := range data.Loras {
		modifiers = append(modifiers, lora.Name+"|"+lora.Link+"|"+lora.Weight)
	}
	sort.Strings(modifiers)
	parts = append(parts, modifiers...)

	sum := blake3.Sum256([]byte(strings.Join(parts, hashSeparator)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Organizer owns no persisted state beyond what it writes through the store
// and the filesystem.
type Organizer struct {
	cfg      *models.Config
	store    *database.DB
	fetcher  *downloader.Downloader
	prompter *prompt.Prompter
	index    ItemIndexer // optional
}

// New creates an Organizer. index may be nil to disable search indexing.
func New(cfg *models.Config, store *database.DB, fetcher *downloader.Downloader, prompter *prompt.Prompter, index ItemIndexer) *Organizer {
	return &Organizer{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		prompter: prompter,
		index:    index,
	}
}

// Archive runs the full placement pipeline for one extracted item and records
// the outcome on the item's attempt row. The returned error is nil on
// success; item-level failures are recorded and returned so the caller can
// log them, and store failures are wrapped in ErrStore.
func (o *Organizer) Archive(ctx context.Context, data *models.ItemData) error {
	relPath, err := o.place(data)
	if err != nil {
		return o.fail(data.ItemID, err)
	}
	absDir := filepath.Join(o.cfg.DownloadRoot, relPath)

	if err := o.WriteMetadata(absDir, data); err != nil {
		return o.fail(data.ItemID, err)
	}

	if err := o.FetchAssets(ctx, absDir, data.AssetURLs); err != nil {
		return o.fail(data.ItemID, err)
	}

	if err := o.store.MarkSuccess(data.ItemID, relPath); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if o.index != nil {
		if err := o.index.IndexItem(data.ItemID, relPath, data); err != nil {
			log.WithError(err).WithField("itemId", data.ItemID).Warn("Failed to index item for search")
		}
	}

	log.WithFields(log.Fields{
		"itemId": data.ItemID,
		"path":   relPath,
	}).Info("Item archived")
	return nil
}

// fail records an item-level failure and returns the original error. A store
// failure while recording takes precedence because it is fatal.
func (o *Organizer) fail(itemID string, itemErr error) error {
	if err := o.store.MarkFailure(itemID, itemErr.Error()); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	log.WithError(itemErr).WithField("itemId", itemID).Warn("Item failed")
	return itemErr
}

// place validates the item, resolves its destination folder and returns the
// path relative to the download root: <folder>/<category>/<hash>.
func (o *Organizer) place(data *models.ItemData) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}

	folderName, categoryKey, err := o.resolveFolder(data)
	if err != nil {
		return "", err
	}

	hash := Hash(data, o.cfg.IncludeSeedInHash)
	relPath, err := paths.ItemDir(folderName, categoryKey, hash)
	if err != nil {
		return "", err
	}
	return relPath, nil
}

// resolveFolder finds the destination folder for an item. Modifier names are
// tried in original order against the category mappings; the first mapping
// whose folder exists on disk wins. With no usable mapping the operator is
// asked once, and the confirmed choice is persisted so the next item sharing
// the category resolves silently.
func (o *Organizer) resolveFolder(data *models.ItemData) (folderName, categoryKey string, err error) {
	for _, lora := range data.Loras {
		folder, err := o.store.GetFolderForCategory(lora.Name)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrStore, err)
		}
		if _, statErr := os.Stat(filepath.Join(o.cfg.DownloadRoot, folder)); statErr == nil {
			return folder, lora.Name, nil
		}
		log.WithFields(log.Fields{
			"category": lora.Name,
			"folder":   folder,
		}).Debug("Mapped folder missing on disk, trying next category")
	}

	// No modifiers at all: nothing to map, use the fallback keyed by the
	// base model name.
	if len(data.Loras) == 0 {
		return o.cfg.UncategorizedFolder, data.Model.Name, nil
	}

	options := make([]string, 0, len(data.Loras))
	for _, lora := range data.Loras {
		options = append(options, lora.Name)
	}

	message := fmt.Sprintf("No folder is mapped for item %s (categories: %s). Assign one:",
		data.ItemID, strings.Join(options, ", "))
	choice, err := o.prompter.SelectFolder(message, options)
	if err != nil {
		return "", "", fmt.Errorf("folder selection failed: %w", err)
	}

	if choice.Kind == prompt.FolderUseFallback {
		return o.cfg.UncategorizedFolder, data.Loras[0].Name, nil
	}

	folder := helpers.SanitizeFolderName(choice.FolderName)
	key := choice.FolderName
	if !contains(options, key) {
		// Operator typed a fresh folder name; map it to the item's
		// first category so future items resolve without a prompt.
		key = data.Loras[0].Name
	}
	if err := o.store.SetFolderForCategory(key, folder); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrStore, err)
	}
	return folder, key, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// WriteMetadata creates the destination directory if absent and writes the
// metadata pair, each only if it does not already exist. Two items hashing to
// the same directory are true duplicates, so the first writer's files are
// preserved.
func (o *Organizer) WriteMetadata(destDir string, data *models.ItemData) error {
	if !helpers.CheckAndMakeDir(destDir) {
		return fmt.Errorf("failed to create destination directory %s", destDir)
	}

	jsonContent, err := FormatJSON(data)
	if err != nil {
		return err
	}
	if err := writeIfAbsent(filepath.Join(destDir, MetadataJSONName), jsonContent); err != nil {
		return err
	}
	return writeIfAbsent(filepath.Join(destDir, MetadataTextName), FormatText(data))
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		log.WithField("path", path).Debug("Metadata file already present, keeping existing")
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FetchAssets downloads every asset link into destDir.
func (o *Organizer) FetchAssets(ctx context.Context, destDir string, assetURLs []string) error {
	for _, rawURL := range assetURLs {
		if _, err := o.fetcher.FetchAsset(ctx, rawURL, destDir, o.cfg.AssetExtension); err != nil {
			return err
		}
	}
	return nil
}
