// Package index maintains a full-text search index over archived items, so
// the collection stays queryable by prompt or model without walking the
// metadata files on disk.
package index

import (
	"fmt"
	"os"
	"strings"

	"go-gallery-archiver/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

// Document is one archived item as indexed. All fields are searchable by
// their lowercase JSON tag names (e.g. '+model:baseA' or '+loras:foxLora').
type Document struct {
	ID         string   `json:"id"`
	StoredPath string   `json:"storedPath"`
	Prompt     string   `json:"prompt"`
	Negative   string   `json:"negative"`
	Method     string   `json:"method"`
	Seed       string   `json:"seed"`
	Model      string   `json:"model"`
	Loras      []string `json:"loras"`
	Resolution string   `json:"resolution"`
}

// Index wraps the bleve index for archived items.
type Index struct {
	bleve bleve.Index
}

// OpenOrCreate opens an existing index at path or creates a new one.
func OpenOrCreate(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.WithField("path", path).Debug("Creating new search index")
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index at %s: %w", path, err)
	}
	return &Index{bleve: idx}, nil
}

// Close flushes and closes the index.
func (i *Index) Close() error {
	return i.bleve.Close()
}

// IndexItem adds or updates one archived item.
func (i *Index) IndexItem(itemID, storedPath string, data *models.ItemData) error {
	loras := make([]string, 0, len(data.Loras))
	for _, lora := range data.Loras {
		loras = append(loras, lora.Name)
	}

	doc := Document{
		ID:         itemID,
		StoredPath: storedPath,
		Prompt:     data.Prompt,
		Negative:   data.NegativePrompt,
		Method:     data.Method,
		Seed:       data.Seed,
		Model:      data.Model.Name,
		Loras:      loras,
		Resolution: data.Size.Resolution,
	}
	return i.bleve.Index(itemID, doc)
}

// Hit is one search result.
type Hit struct {
	ID         string
	StoredPath string
	Prompt     string
	Score      float64
}

// Search runs a bleve query string against the index and returns up to limit
// hits, best first.
func (i *Index) Search(query string, limit int) ([]Hit, error) {
	request := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	request.Fields = []string{"storedPath", "prompt"}
	if limit > 0 {
		request.Size = limit
	}

	results, err := i.bleve.Search(request)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, match := range results.Hits {
		hit := Hit{ID: match.ID, Score: match.Score}
		if path, ok := match.Fields["storedPath"].(string); ok {
			hit.StoredPath = path
		}
		if prompt, ok := match.Fields["prompt"].(string); ok {
			hit.Prompt = prompt
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of indexed items.
func (i *Index) Count() (uint64, error) {
	return i.bleve.DocCount()
}

// Delete removes the index directory entirely. The reset command uses this
// alongside the store reset.
func Delete(path string) error {
	if path == "" || strings.TrimSpace(path) == "/" {
		return fmt.Errorf("refusing to delete index path %q", path)
	}
	log.WithField("path", path).Debug("Deleting search index")
	return os.RemoveAll(path)
}
