package extractor

import (
	"context"
	"testing"
	"time"

	"go-gallery-archiver/internal/browser"
	"go-gallery-archiver/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	text     string
	props    map[string]string
	children map[string][]*fakeElement
}

func (e *fakeElement) Click(ctx context.Context) error { return nil }

func (e *fakeElement) TypeText(ctx context.Context, text string) error { return nil }

func (e *fakeElement) Text(ctx context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) ScrollIntoView(ctx context.Context) error { return nil }
func (e *fakeElement) Property(ctx context.Context, name string) (string, error) {
	return e.props[name], nil
}

// fakeSurface serves canned elements by selector. A selector listed in
// lateMounts returns no matches for that many calls first, simulating a
// rendering race.
type fakeSurface struct {
	doc        map[string][]*fakeElement
	lateMounts map[string]int
}

func (s *fakeSurface) FindInDocument(ctx context.Context, selector string) ([]browser.Element, error) {
	if s.lateMounts[selector] > 0 {
		s.lateMounts[selector]--
		return nil, nil
	}
	return wrap(s.doc[selector]), nil
}

func (s *fakeSurface) FindInScope(ctx context.Context, parent browser.Element, selector string) ([]browser.Element, error) {
	return wrap(parent.(*fakeElement).children[selector]), nil
}

func (s *fakeSurface) WaitPresent(ctx context.Context, selector string) error { return nil }
func (s *fakeSurface) WaitGone(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (s *fakeSurface) Navigate(ctx context.Context, url string) error { return nil }

func wrap(elements []*fakeElement) []browser.Element {
	out := make([]browser.Element, 0, len(elements))
	for _, e := range elements {
		out = append(out, e)
	}
	return out
}

func settingsRow(label, value string) *fakeElement {
	return &fakeElement{children: map[string][]*fakeElement{
		rowLabelSelector: {{text: label}},
		rowValueSelector: {{text: value}},
	}}
}

func loraEntry(name, link, weight string) *fakeElement {
	return &fakeElement{children: map[string][]*fakeElement{
		loraLinkSelector:   {{text: name, props: map[string]string{"href": link}}},
		loraWeightSelector: {{props: map[string]string{"value": weight}}},
	}}
}

func fullDetailView() *fakeSurface {
	loraContainer := &fakeElement{children: map[string][]*fakeElement{
		loraEntrySelector: {loraEntry("foxLora", "http://x/fox", "0.8")},
	}}
	sizeElement := &fakeElement{children: map[string][]*fakeElement{
		sizeRatioSelector:      {{text: "1:1"}},
		sizeResolutionSelector: {{text: "512x512"}},
	}}

	return &fakeSurface{
		lateMounts: map[string]int{},
		doc: map[string][]*fakeElement{
			assetSelector: {
				{props: map[string]string{"src": "http://x/media/fox_001.webp"}},
				{props: map[string]string{"src": "http://x/media/fox_002.webp"}},
			},
			promptSelector: {
				{text: "a red fox"},
				{text: "blurry"},
			},
			modelSelector: {
				{text: "baseA", props: map[string]string{"href": "http://x/baseA"}},
			},
			metadataRowSelector: {
				settingsRow("Sampling Method", "euler"),
				settingsRow("Steps", "20"),
				settingsRow("CFG Scale", "7"),
				settingsRow("Seed", "42"),
				settingsRow("VAE", "default"),
				settingsRow("Something New", "ignored"),
			},
			sizeSelector:          {sizeElement},
			loraContainerSelector: {loraContainer},
		},
	}
}

func newTestExtractor(surface browser.Surface) *Extractor {
	return New(surface, 3, time.Millisecond)
}

func TestExtractFullItem(t *testing.T) {
	e := newTestExtractor(fullDetailView())

	data, err := e.Extract(context.Background(), "item-123")
	require.NoError(t, err)

	assert.Equal(t, "item-123", data.ItemID)
	assert.Equal(t, "a red fox", data.Prompt)
	assert.Equal(t, "blurry", data.NegativePrompt)
	assert.Equal(t, "euler", data.Method)
	assert.Equal(t, "20", data.Steps)
	assert.Equal(t, "7", data.Cfg)
	assert.Equal(t, "42", data.Seed)
	assert.Equal(t, "default", data.Vae)
	assert.Equal(t, models.SizeInfo{Ratio: "1:1", Resolution: "512x512"}, data.Size)
	assert.Equal(t, models.ModelRef{Name: "baseA", Link: "http://x/baseA"}, data.Model)
	require.Len(t, data.Loras, 1)
	assert.Equal(t, models.Lora{Name: "foxLora", Link: "http://x/fox", Weight: "0.8"}, data.Loras[0])
	assert.Equal(t, []string{"http://x/media/fox_001.webp", "http://x/media/fox_002.webp"}, data.AssetURLs)
}

func TestExtractMissingMandatoryField(t *testing.T) {
	surface := fullDetailView()
	// Drop the seed row.
	rows := surface.doc[metadataRowSelector]
	kept := rows[:0]
	for _, row := range rows {
		label, _ := row.children[rowLabelSelector][0].Text(context.Background())
		if label != "Seed" {
			kept = append(kept, row)
		}
	}
	surface.doc[metadataRowSelector] = kept

	_, err := newTestExtractor(surface).Extract(context.Background(), "item-123")
	require.Error(t, err)

	var missing *models.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "seed", missing.Field)
}

func TestExtractLateMountingModel(t *testing.T) {
	surface := fullDetailView()
	surface.lateMounts[modelSelector] = 2

	data, err := newTestExtractor(surface).Extract(context.Background(), "item-123")
	require.NoError(t, err)
	assert.Equal(t, "baseA", data.Model.Name)
}

func TestExtractLateMountingLoras(t *testing.T) {
	surface := fullDetailView()
	surface.lateMounts[loraContainerSelector] = 2

	data, err := newTestExtractor(surface).Extract(context.Background(), "item-123")
	require.NoError(t, err)
	require.Len(t, data.Loras, 1)
}

func TestExtractLorasExhaustedDegradesToEmpty(t *testing.T) {
	surface := fullDetailView()
	delete(surface.doc, loraContainerSelector)

	data, err := newTestExtractor(surface).Extract(context.Background(), "item-123")
	require.NoError(t, err, "missing modifiers must not fail the item")
	assert.Empty(t, data.Loras)
}

func TestExtractNoAssets(t *testing.T) {
	surface := fullDetailView()
	delete(surface.doc, assetSelector)

	_, err := newTestExtractor(surface).Extract(context.Background(), "item-123")
	require.Error(t, err)

	var missing *models.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "assets", missing.Field)
}
