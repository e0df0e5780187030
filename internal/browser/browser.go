// Package browser defines the rendering surface capabilities the crawl
// pipeline consumes and provides a Chrome DevTools implementation of them.
// The pipeline only ever sees the Surface and Element interfaces, so the
// automation backend can be swapped or faked in tests.
package browser

import (
	"context"
	"errors"
	"time"
)

// Element is one located node on the rendered page.
type Element interface {
	// Click dispatches a click on the element.
	Click(ctx context.Context) error
	// TypeText focuses the element and types the given text into it.
	TypeText(ctx context.Context, text string) error
	// Text returns the visible text content of the element.
	Text(ctx context.Context) (string, error)
	// Property returns the value of a named JavaScript property, such as
	// "src" or "href". Attribute lookups resolve relative URLs, property
	// lookups do not, which matters for asset links.
	Property(ctx context.Context, name string) (string, error)
	// ScrollIntoView scrolls the element into the viewport. Virtualized
	// lists only mount items near the viewport, so this is also how the
	// crawl loop forces lazy items to render.
	ScrollIntoView(ctx context.Context) error
}

// Surface is the document-level capability set. Locating elements has two
// explicitly named forms: FindInDocument searches the whole document,
// FindInScope searches under a previously located parent. Callers choose one,
// there is no overloaded form that guesses from argument types.
type Surface interface {
	FindInDocument(ctx context.Context, selector string) ([]Element, error)
	FindInScope(ctx context.Context, parent Element, selector string) ([]Element, error)
	// WaitPresent blocks until at least one element matches the selector.
	WaitPresent(ctx context.Context, selector string) error
	// WaitGone blocks until no element matches the selector. A timeout is
	// tolerated and reported as success: a loading indicator that never
	// mounted at all is indistinguishable from one that already cleared,
	// and both mean the page is ready.
	WaitGone(ctx context.Context, selector string, timeout time.Duration) error
	Navigate(ctx context.Context, url string) error
}

// ErrNoMatch is returned by helpers that require at least one element.
var ErrNoMatch = errors.New("no element matched selector")

// First returns the first element matching the selector in the document, or
// ErrNoMatch.
func First(ctx context.Context, s Surface, selector string) (Element, error) {
	elements, err := s.FindInDocument(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, ErrNoMatch
	}
	return elements[0], nil
}

// FirstInScope returns the first element matching the selector under the
// parent, or ErrNoMatch.
func FirstInScope(ctx context.Context, s Surface, parent Element, selector string) (Element, error) {
	elements, err := s.FindInScope(ctx, parent, selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, ErrNoMatch
	}
	return elements[0], nil
}
