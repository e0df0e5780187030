// Package crawler walks the rendered gallery list and drives extraction and
// archival per item. It owns the crawl cursor and the duplicate counters;
// everything durable lives in the store.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"go-gallery-archiver/internal/browser"
	"go-gallery-archiver/internal/database"
	"go-gallery-archiver/internal/models"
	"go-gallery-archiver/internal/organizer"
	"go-gallery-archiver/internal/prompt"

	log "github.com/sirupsen/logrus"
)

// Gallery list selectors. The list is virtualized, so each pass over the
// container may reveal a different slice of items.
const (
	listItemSelector       = "[data-test-id=virtuoso-scroller] [data-test-id=virtuoso-item-list] > :not(.whitespace-nowrap)"
	itemActivatorSelector  = "button"
	itemThumbSelector      = "img"
	loadingSpinnerSelector = ".MuiCircularProgress-root"
	detailCloseSelector    = `button[aria-label="Close"]`
)

// How long to wait for a loading spinner to clear. Spinners that never
// mounted are indistinguishable from ones that already cleared, so the
// timeout is short and tolerated.
const spinnerWait = 3 * time.Second

// ItemExtractor produces a metadata record from an open detail view.
type ItemExtractor interface {
	Extract(ctx context.Context, itemID string) (*models.ItemData, error)
}

// ItemArchiver places an extracted item on disk and records its outcome.
type ItemArchiver interface {
	Archive(ctx context.Context, data *models.ItemData) error
}

// Crawler orchestrates one crawl run over a live session positioned on the
// dashboard.
type Crawler struct {
	cfg       *models.Config
	store     *database.DB
	surface   browser.Surface
	extractor ItemExtractor
	archiver  ItemArchiver
	prompter  *prompt.Prompter
	status    io.Writer // optional live status line
}

// New creates a Crawler. status may be nil to disable progress output.
func New(cfg *models.Config, store *database.DB, surface browser.Surface, extractor ItemExtractor, archiver ItemArchiver, prompter *prompt.Prompter, status io.Writer) *Crawler {
	return &Crawler{
		cfg:       cfg,
		store:     store,
		surface:   surface,
		extractor: extractor,
		archiver:  archiver,
		prompter:  prompter,
		status:    status,
	}
}

// Run walks the gallery until one of the termination conditions holds: a
// previously archived item is met in new-only mode, the operator declines to
// continue past the duplicate threshold, or a pass processes nothing and the
// mode is not exhaustive. Item-level errors are contained to the item; only
// store and session errors propagate.
func (c *Crawler) Run(ctx context.Context) error {
	threshold := c.cfg.DuplicateThreshold
	consecutiveDuplicates := 0
	totalProcessed := 0

	for pass := 1; ; pass++ {
		items, err := c.surface.FindInDocument(ctx, listItemSelector)
		if err != nil {
			return fmt.Errorf("failed to read gallery list: %w", err)
		}
		log.WithFields(log.Fields{
			"pass":  pass,
			"items": len(items),
		}).Debug("Starting pass over rendered items")

		processedThisPass := 0
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}

			itemID, err := c.resolveItemID(ctx, item)
			if err != nil {
				log.WithError(err).Warn("Could not resolve item identifier, skipping")
				continue
			}

			// Skip check before any expensive DOM interaction.
			seen, err := c.store.HasSuccess(itemID)
			if err != nil {
				return fmt.Errorf("%w: %v", organizer.ErrStore, err)
			}
			if seen {
				if c.cfg.Mode == models.ModeNew {
					// The list is ordered newest-first, so the
					// first duplicate implies everything after
					// it is already archived.
					log.WithField("itemId", itemID).Info("Reached known item, stopping")
					return nil
				}

				consecutiveDuplicates++
				c.reportStatus(pass, totalProcessed, consecutiveDuplicates)
				if consecutiveDuplicates >= threshold {
					keepGoing, newThreshold, err := c.askContinue(threshold)
					if err != nil {
						return err
					}
					if !keepGoing {
						log.Info("Stopping at operator request")
						return nil
					}
					threshold = newThreshold
					consecutiveDuplicates = 0
				}
				continue
			}

			consecutiveDuplicates = 0
			if err := c.store.RecordAttempt(itemID); err != nil {
				return fmt.Errorf("%w: %v", organizer.ErrStore, err)
			}

			if err := c.processItem(ctx, item, itemID); err != nil {
				if errors.Is(err, organizer.ErrStore) || errors.Is(err, context.Canceled) {
					return err
				}
				// Contained: the failure is recorded, the loop
				// moves on.
				log.WithError(err).WithField("itemId", itemID).Warn("Item processing failed")
			}

			processedThisPass++
			totalProcessed++
			c.reportStatus(pass, totalProcessed, consecutiveDuplicates)

			if err := c.jitter(ctx); err != nil {
				return err
			}
		}

		if processedThisPass == 0 && c.cfg.Mode != models.ModeAll {
			log.WithField("processed", totalProcessed).Info("No new items in pass, crawl complete")
			return nil
		}
	}
}

// resolveItemID derives the stable identifier of a list item from its
// thumbnail source. The identifier is rendering-derived: if the site rehosts
// an item under a new URL, it counts as a new item.
func (c *Crawler) resolveItemID(ctx context.Context, item browser.Element) (string, error) {
	thumb, err := browser.FirstInScope(ctx, c.surface, item, itemThumbSelector)
	if err != nil {
		return "", fmt.Errorf("item has no thumbnail: %w", err)
	}
	src, err := thumb.Property(ctx, "src")
	if err != nil {
		return "", err
	}
	if src == "" {
		return "", fmt.Errorf("item thumbnail has no source")
	}
	return src, nil
}

// processItem opens the item's detail view, extracts and archives it. Errors
// are recorded on the item's attempt row before returning.
func (c *Crawler) processItem(ctx context.Context, item browser.Element, itemID string) error {
	if err := item.ScrollIntoView(ctx); err != nil {
		return c.failItem(itemID, err)
	}

	activator, err := browser.FirstInScope(ctx, c.surface, item, itemActivatorSelector)
	if err != nil {
		return c.failItem(itemID, fmt.Errorf("item has no activator: %w", err))
	}
	if err := activator.Click(ctx); err != nil {
		return c.failItem(itemID, err)
	}
	defer c.closeDetail(ctx)

	if err := c.surface.WaitGone(ctx, loadingSpinnerSelector, spinnerWait); err != nil {
		return c.failItem(itemID, err)
	}

	data, err := c.extractor.Extract(ctx, itemID)
	if err != nil {
		return c.failItem(itemID, err)
	}

	// The archiver records its own outcome.
	return c.archiver.Archive(ctx, data)
}

func (c *Crawler) failItem(itemID string, itemErr error) error {
	if err := c.store.MarkFailure(itemID, itemErr.Error()); err != nil {
		return fmt.Errorf("%w: %v", organizer.ErrStore, err)
	}
	return itemErr
}

// closeDetail dismisses the detail view so the next item's activator is
// clickable again. Best effort: navigation state is re-read every pass.
func (c *Crawler) closeDetail(ctx context.Context) {
	closeButton, err := browser.First(ctx, c.surface, detailCloseSelector)
	if err != nil {
		return
	}
	if err := closeButton.Click(ctx); err != nil {
		log.WithError(err).Debug("Could not close detail view")
	}
}

// askContinue suspends the crawl at the duplicate threshold and asks the
// operator whether to continue, and if so, at what new threshold.
func (c *Crawler) askContinue(threshold int) (bool, int, error) {
	message := fmt.Sprintf("Hit %d consecutive already-archived items. Continue crawling?", threshold)
	keepGoing, err := c.prompter.Confirm(message, false)
	if err != nil {
		return false, 0, fmt.Errorf("duplicate threshold prompt failed: %w", err)
	}
	if !keepGoing {
		return false, 0, nil
	}

	newThreshold, err := c.prompter.Number("Pause again after how many consecutive duplicates?", 1, 1000, threshold)
	if err != nil {
		return false, 0, fmt.Errorf("threshold input failed: %w", err)
	}
	return true, newThreshold, nil
}

// jitter sleeps a random interval between items so the crawl does not hammer
// the source at machine speed.
func (c *Crawler) jitter(ctx context.Context) error {
	if c.cfg.JitterMaxMs <= 0 {
		return nil
	}
	span := c.cfg.JitterMaxMs - c.cfg.JitterMinMs
	ms := c.cfg.JitterMinMs
	if span > 0 {
		ms += rand.Intn(span + 1)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	}
}

func (c *Crawler) reportStatus(pass, processed, duplicates int) {
	if c.status == nil {
		return
	}
	fmt.Fprintf(c.status, "Pass %d | archived %d | duplicate streak %d\n", pass, processed, duplicates)
}
