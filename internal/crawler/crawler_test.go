package crawler

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-gallery-archiver/internal/browser"
	"go-gallery-archiver/internal/database"
	"go-gallery-archiver/internal/models"
	"go-gallery-archiver/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	props    map[string]string
	children map[string][]*fakeElement
	clicks   int
}

func (e *fakeElement) Click(ctx context.Context) error { e.clicks++; return nil }

func (e *fakeElement) TypeText(ctx context.Context, text string) error { return nil }

func (e *fakeElement) Text(ctx context.Context) (string, error) { return "", nil }

func (e *fakeElement) ScrollIntoView(ctx context.Context) error { return nil }

func (e *fakeElement) Property(ctx context.Context, name string) (string, error) {
	return e.props[name], nil
}

type fakeSurface struct {
	items []*fakeElement
}

func (s *fakeSurface) FindInDocument(ctx context.Context, selector string) ([]browser.Element, error) {
	if selector == listItemSelector {
		out := make([]browser.Element, 0, len(s.items))
		for _, item := range s.items {
			out = append(out, item)
		}
		return out, nil
	}
	return nil, nil
}

func (s *fakeSurface) FindInScope(ctx context.Context, parent browser.Element, selector string) ([]browser.Element, error) {
	children := parent.(*fakeElement).children[selector]
	out := make([]browser.Element, 0, len(children))
	for _, child := range children {
		out = append(out, child)
	}
	return out, nil
}

func (s *fakeSurface) WaitPresent(ctx context.Context, selector string) error { return nil }
func (s *fakeSurface) WaitGone(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (s *fakeSurface) Navigate(ctx context.Context, url string) error { return nil }

func galleryItem(itemID string) *fakeElement {
	return &fakeElement{children: map[string][]*fakeElement{
		itemThumbSelector:     {{props: map[string]string{"src": itemID}}},
		itemActivatorSelector: {{}},
	}}
}

func (e *fakeElement) activator() *fakeElement {
	return e.children[itemActivatorSelector][0]
}

type fakeExtractor struct {
	errs map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, itemID string) (*models.ItemData, error) {
	if err := f.errs[itemID]; err != nil {
		return nil, err
	}
	return &models.ItemData{ItemID: itemID, Prompt: "a prompt"}, nil
}

type fakeArchiver struct {
	store    *database.DB
	archived []string
}

func (f *fakeArchiver) Archive(ctx context.Context, data *models.ItemData) error {
	f.archived = append(f.archived, data.ItemID)
	return f.store.MarkSuccess(data.ItemID, filepath.Join("folder", data.ItemID))
}

type harness struct {
	crawler   *Crawler
	store     *database.DB
	surface   *fakeSurface
	extractor *fakeExtractor
	archiver  *fakeArchiver
	promptOut *bytes.Buffer
}

func newHarness(t *testing.T, mode string, threshold int, promptInput string, itemIDs ...string) *harness {
	t.Helper()

	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	surface := &fakeSurface{}
	for _, id := range itemIDs {
		surface.items = append(surface.items, galleryItem(id))
	}

	cfg := &models.Config{
		Mode:               mode,
		DuplicateThreshold: threshold,
	}
	extractor := &fakeExtractor{errs: map[string]error{}}
	archiver := &fakeArchiver{store: store}
	promptOut := &bytes.Buffer{}
	prompter := prompt.New(strings.NewReader(promptInput), promptOut)

	return &harness{
		crawler:   New(cfg, store, surface, extractor, archiver, prompter, nil),
		store:     store,
		surface:   surface,
		extractor: extractor,
		archiver:  archiver,
		promptOut: promptOut,
	}
}

func markArchived(t *testing.T, store *database.DB, itemIDs ...string) {
	t.Helper()
	for _, id := range itemIDs {
		require.NoError(t, store.RecordAttempt(id))
		require.NoError(t, store.MarkSuccess(id, filepath.Join("folder", id)))
	}
}

func TestRunArchivesNewItems(t *testing.T) {
	h := newHarness(t, models.ModeNew, 3, "", "item-a", "item-b")

	require.NoError(t, h.crawler.Run(context.Background()))
	assert.Equal(t, []string{"item-a", "item-b"}, h.archiver.archived)

	for _, id := range []string{"item-a", "item-b"} {
		record, err := h.store.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, record.Status)
	}
}

func TestResumeSafety(t *testing.T) {
	// item-old was archived in a previous run; item-new appeared since and
	// renders first (the list is newest-first).
	h := newHarness(t, models.ModeNew, 3, "", "item-new", "item-old")
	markArchived(t, h.store, "item-old")

	require.NoError(t, h.crawler.Run(context.Background()))

	assert.Equal(t, []string{"item-new"}, h.archiver.archived, "known item must not be re-downloaded")

	groups, err := h.store.ListDuplicateGroups()
	require.NoError(t, err)
	assert.Empty(t, groups, "no second attempt row for the known item")
}

func TestSkipCheckPrecedesInteraction(t *testing.T) {
	h := newHarness(t, models.ModeNew, 3, "", "item-old")
	markArchived(t, h.store, "item-old")

	require.NoError(t, h.crawler.Run(context.Background()))
	assert.Zero(t, h.surface.items[0].activator().clicks, "known item must not be clicked")
}

func TestFailureIsolation(t *testing.T) {
	h := newHarness(t, models.ModeNew, 3, "", "item-x", "item-y")
	h.extractor.errs["item-x"] = &models.MissingFieldError{Field: "method"}

	require.NoError(t, h.crawler.Run(context.Background()))

	assert.Contains(t, h.archiver.archived, "item-y", "the item after a failure is still processed")

	record, err := h.store.Lookup("item-x")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailure, record.Status)
	assert.Contains(t, record.FailureReason, "method")

	record, err = h.store.Lookup("item-y")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, record.Status)
}

func TestDuplicateThresholdDecline(t *testing.T) {
	h := newHarness(t, models.ModeAll, 2, "n\n", "item-d1", "item-d2", "item-d3", "item-new")
	markArchived(t, h.store, "item-d1", "item-d2", "item-d3")

	require.NoError(t, h.crawler.Run(context.Background()))

	assert.Empty(t, h.archiver.archived, "declining stops the run with nothing further processed")
	assert.Equal(t, 1, strings.Count(h.promptOut.String(), "Continue crawling?"),
		"prompted exactly once, after the second consecutive duplicate")

	_, err := h.store.Lookup("item-new")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDuplicateThresholdAcceptRaisesThreshold(t *testing.T) {
	// Accept with a new threshold of 5, then decline the next prompt.
	h := newHarness(t, models.ModeAll, 2, "y\n5\nn\n", "item-d1", "item-d2", "item-d3", "item-new")
	markArchived(t, h.store, "item-d1", "item-d2", "item-d3")

	require.NoError(t, h.crawler.Run(context.Background()))

	assert.Equal(t, []string{"item-new"}, h.archiver.archived,
		"after accepting, the crawl continues past the remaining duplicates to the new item")
	assert.Equal(t, 2, strings.Count(h.promptOut.String(), "Continue crawling?"),
		"the raised threshold defers the next prompt until five consecutive duplicates")
}

func TestExhaustiveModeProcessesPastKnownItems(t *testing.T) {
	// A known item sits between two new ones; exhaustive mode walks past it.
	h := newHarness(t, models.ModeAll, 10, "n\n", "item-a", "item-old", "item-b")
	markArchived(t, h.store, "item-old")

	require.NoError(t, h.crawler.Run(context.Background()))
	assert.Contains(t, h.archiver.archived, "item-a")
	assert.Contains(t, h.archiver.archived, "item-b")
}
