package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-gallery-archiver/internal/models"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

// Login form selectors on the gallery site.
const (
	loginUsernameSelector = `input[name="username"]`
	loginPasswordSelector = `input[name="password"]`
	loginSubmitSelector   = `button[type="submit"]`
)

// Session is the chromedp-backed implementation of Surface. It owns one
// browser instance for its lifetime; the crawl loop holds it exclusively and
// tears it down in a deferred cleanup.
type Session struct {
	cfg         *models.Config
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewSession launches a browser configured from cfg.
func NewSession(cfg *models.Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser process now so a broken Chrome install fails the
	// run immediately instead of on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.WithFields(log.Fields{
		"headless": cfg.Headless,
		"viewport": fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
	}).Debug("Browser session started")

	return &Session{
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
	log.Debug("Browser session closed")
}

// run executes actions against the session with a per-operation timeout,
// honoring cancellation of the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Session) opTimeout() time.Duration {
	return time.Duration(s.cfg.BrowserTimeoutSec) * time.Second
}

// Navigate loads the given URL and waits for the page to become interactive.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opTimeout(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Login signs in with the configured credentials and waits until the
// dashboard URL is reached.
func (s *Session) Login(ctx context.Context) error {
	log.WithField("url", s.cfg.SiteURL).Info("Logging in")

	if err := s.Navigate(ctx, s.cfg.SiteURL); err != nil {
		return err
	}

	err := s.run(ctx, s.opTimeout(),
		chromedp.WaitVisible(loginUsernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(loginUsernameSelector, s.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(loginPasswordSelector, s.cfg.Password, chromedp.ByQuery),
		chromedp.Click(loginSubmitSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login form interaction failed: %w", err)
	}

	if err := s.Navigate(ctx, s.cfg.DashboardURL); err != nil {
		return fmt.Errorf("failed to reach dashboard after login: %w", err)
	}

	log.Info("Login complete")
	return nil
}

// FindInDocument returns all elements matching the selector anywhere in the
// document. Zero matches is not an error.
func (s *Session) FindInDocument(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.opTimeout(),
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return s.wrapNodes(nodes), nil
}

// FindInScope returns all elements matching the selector under the parent
// element. Zero matches is not an error.
func (s *Session) FindInScope(ctx context.Context, parent Element, selector string) ([]Element, error) {
	parentNode, ok := parent.(*chromedpElement)
	if !ok {
		return nil, fmt.Errorf("parent element is not a chromedp element (got %T)", parent)
	}

	var nodes []*cdp.Node
	err := s.run(ctx, s.opTimeout(),
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(parentNode.node)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q in scope: %w", selector, err)
	}
	return s.wrapNodes(nodes), nil
}

// WaitPresent blocks until the selector matches at least one element.
func (s *Session) WaitPresent(ctx context.Context, selector string) error {
	err := s.run(ctx, s.opTimeout(), chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("timed out waiting for %q: %w", selector, err)
	}
	return nil
}

// WaitGone blocks until no element matches the selector. Hitting the timeout
// is treated as success.
func (s *Session) WaitGone(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitNotPresent(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		log.WithField("selector", selector).Debug("Element still present after wait, continuing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed waiting for %q to clear: %w", selector, err)
	}
	return nil
}

func (s *Session) wrapNodes(nodes []*cdp.Node) []Element {
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromedpElement{session: s, node: n})
	}
	return elements
}

// chromedpElement implements Element for one resolved DOM node.
type chromedpElement struct {
	session *Session
	node    *cdp.Node
}

func (e *chromedpElement) sel() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromedpElement) Click(ctx context.Context) error {
	err := e.session.run(ctx, e.session.opTimeout(), chromedp.Click(e.sel(), chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (e *chromedpElement) TypeText(ctx context.Context, text string) error {
	err := e.session.run(ctx, e.session.opTimeout(), chromedp.SendKeys(e.sel(), text, chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.run(ctx, e.session.opTimeout(), chromedp.Text(e.sel(), &text, chromedp.ByNodeID))
	if err != nil {
		return "", fmt.Errorf("text read failed: %w", err)
	}
	return text, nil
}

func (e *chromedpElement) Property(ctx context.Context, name string) (string, error) {
	var value string
	err := e.session.run(ctx, e.session.opTimeout(), chromedp.JavascriptAttribute(e.sel(), name, &value, chromedp.ByNodeID))
	if err != nil {
		return "", fmt.Errorf("property %q read failed: %w", name, err)
	}
	return value, nil
}

func (e *chromedpElement) ScrollIntoView(ctx context.Context) error {
	err := e.session.run(ctx, e.session.opTimeout(), chromedp.ScrollIntoView(e.sel(), chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}
