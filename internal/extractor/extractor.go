// Package extractor turns one activated gallery item's detail view into a
// structured metadata record. Extraction is best-effort per field; whether
// the record is usable is decided by validation at the end, which names the
// first missing mandatory field.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-gallery-archiver/internal/browser"
	"go-gallery-archiver/internal/models"
	"go-gallery-archiver/internal/retry"

	log "github.com/sirupsen/logrus"
)

// Detail view selectors. The dashboard renders the prompt pair as textareas,
// the generation settings as labeled rows inside the metadata section, and
// the style modifiers as rounded cards inside a collapsible section.
const (
	assetSelector  = "main img"
	promptSelector = "main textarea"
	modelSelector  = "p a"

	metadataRowSelector = "section:has(section) section"
	rowLabelSelector    = "label"
	rowValueSelector    = "label + span"

	sizeSelector           = "section button.ring-neutral-700"
	sizeRatioSelector      = "label"
	sizeResolutionSelector = "label + span"

	loraContainerSelector = "section:has(.MuiButtonBase-root > svg)"
	loraEntrySelector     = "div.rounded-xl:has(a)"
	loraLinkSelector      = "a"
	loraWeightSelector    = "span+div>input"
)

// Labels of the generation settings rows, lowercased for matching.
const (
	labelNegative = "negative"
	labelMethod   = "sampling method"
	labelSteps    = "steps"
	labelCfg      = "cfg scale"
	labelSeed     = "seed"
	labelVae      = "vae"
)

// Extractor reads one item's metadata from the rendering surface.
type Extractor struct {
	surface  browser.Surface
	attempts int
	delay    time.Duration
}

// New creates an Extractor. attempts and delay configure the retry guard for
// the fields known to mount late (base model link, style modifiers).
func New(surface browser.Surface, attempts int, delay time.Duration) *Extractor {
	return &Extractor{
		surface:  surface,
		attempts: attempts,
		delay:    delay,
	}
}

// Extract reads the open detail view into an ItemData. Field order matters
// for latency, not correctness: assets first (slowest, most reliable wait
// condition), plain text and numeric fields next, and the two late-mounting
// fields last under the retry guard. The returned error is a
// *models.MissingFieldError when a mandatory field could not be read.
func (e *Extractor) Extract(ctx context.Context, itemID string) (*models.ItemData, error) {
	data := &models.ItemData{ItemID: itemID}

	e.extractAssets(ctx, data)
	e.extractPrompts(ctx, data)
	e.extractSettings(ctx, data)
	e.extractSize(ctx, data)
	e.extractModel(ctx, data)
	e.extractLoras(ctx, data)

	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

func (e *Extractor) extractAssets(ctx context.Context, data *models.ItemData) {
	if err := e.surface.WaitPresent(ctx, assetSelector); err != nil {
		log.WithError(err).Debug("No assets appeared in detail view")
		return
	}

	elements, err := e.surface.FindInDocument(ctx, assetSelector)
	if err != nil {
		log.WithError(err).Debug("Asset query failed")
		return
	}
	for _, element := range elements {
		src, err := element.Property(ctx, "src")
		if err != nil || src == "" {
			continue
		}
		data.AssetURLs = append(data.AssetURLs, src)
	}
}

func (e *Extractor) extractPrompts(ctx context.Context, data *models.ItemData) {
	elements, err := e.surface.FindInDocument(ctx, promptSelector)
	if err != nil {
		log.WithError(err).Debug("Prompt query failed")
		return
	}
	if len(elements) > 0 {
		data.Prompt = e.textOf(ctx, elements[0])
	}
	if len(elements) > 1 {
		data.NegativePrompt = e.textOf(ctx, elements[1])
	}
}

// extractSettings walks the labeled rows of the generation settings section
// and assigns values by label. Unknown labels are ignored so new dashboard
// rows do not break extraction.
func (e *Extractor) extractSettings(ctx context.Context, data *models.ItemData) {
	rows, err := e.surface.FindInDocument(ctx, metadataRowSelector)
	if err != nil {
		log.WithError(err).Debug("Settings query failed")
		return
	}

	for _, row := range rows {
		label, err := browser.FirstInScope(ctx, e.surface, row, rowLabelSelector)
		if err != nil {
			continue
		}
		value, err := browser.FirstInScope(ctx, e.surface, row, rowValueSelector)
		if err != nil {
			continue
		}

		text := e.textOf(ctx, value)
		switch strings.ToLower(strings.TrimSpace(e.textOf(ctx, label))) {
		case labelNegative:
			if data.NegativePrompt == "" {
				data.NegativePrompt = text
			}
		case labelMethod:
			data.Method = text
		case labelSteps:
			data.Steps = text
		case labelCfg:
			data.Cfg = text
		case labelSeed:
			data.Seed = text
		case labelVae:
			data.Vae = text
		}
	}
}

func (e *Extractor) extractSize(ctx context.Context, data *models.ItemData) {
	sizeElement, err := browser.First(ctx, e.surface, sizeSelector)
	if err != nil {
		log.WithError(err).Debug("Size element not found")
		return
	}

	if ratio, err := browser.FirstInScope(ctx, e.surface, sizeElement, sizeRatioSelector); err == nil {
		data.Size.Ratio = e.textOf(ctx, ratio)
	}
	if resolution, err := browser.FirstInScope(ctx, e.surface, sizeElement, sizeResolutionSelector); err == nil {
		data.Size.Resolution = e.textOf(ctx, resolution)
	}
}

// extractModel reads the base model name and link. The link mounts with
// unreliable timing, so the whole read runs under the retry guard; a
// persistent miss surfaces later as a validation failure.
func (e *Extractor) extractModel(ctx context.Context, data *models.ItemData) {
	err := retry.Do(ctx, func() error {
		element, err := browser.First(ctx, e.surface, modelSelector)
		if err != nil {
			return err
		}
		name := e.textOf(ctx, element)
		link, err := element.Property(ctx, "href")
		if err != nil || name == "" || link == "" {
			return fmt.Errorf("base model not fully rendered")
		}
		data.Model = models.ModelRef{Name: name, Link: link}
		return nil
	}, e.attempts, e.delay)
	if err != nil {
		log.WithError(err).Debug("Base model extraction exhausted retries")
	}
}

// extractLoras reads the style modifier list under the retry guard. Modifiers
// are optional: exhausting the retries degrades to an empty list instead of
// failing the item, because an item with no modifiers is indistinguishable
// from one whose modifier section lost a rendering race.
func (e *Extractor) extractLoras(ctx context.Context, data *models.ItemData) {
	loras, err := retry.DoWithResult(ctx, func() ([]models.Lora, error) {
		container, err := browser.First(ctx, e.surface, loraContainerSelector)
		if err != nil {
			return nil, err
		}
		entries, err := e.surface.FindInScope(ctx, container, loraEntrySelector)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("no style modifier entries rendered")
		}

		result := make([]models.Lora, 0, len(entries))
		for _, entry := range entries {
			link, err := browser.FirstInScope(ctx, e.surface, entry, loraLinkSelector)
			if err != nil {
				return nil, err
			}
			lora := models.Lora{Name: e.textOf(ctx, link)}
			if lora.Link, err = link.Property(ctx, "href"); err != nil {
				return nil, err
			}
			if weight, err := browser.FirstInScope(ctx, e.surface, entry, loraWeightSelector); err == nil {
				lora.Weight, _ = weight.Property(ctx, "value")
			}
			result = append(result, lora)
		}
		return result, nil
	}, e.attempts, e.delay)
	if err != nil {
		log.WithField("itemId", data.ItemID).Debug("No style modifiers extracted, recording none")
		return
	}
	data.Loras = loras
}

func (e *Extractor) textOf(ctx context.Context, element browser.Element) string {
	text, err := element.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
