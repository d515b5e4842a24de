// internal/browser/chromedp_page.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
)

// ChromedpPage drives one browser tab over the Chrome DevTools Protocol.
type ChromedpPage struct {
	ctx    context.Context
	logger *zap.Logger
}

// NewPage wraps an existing chromedp tab context. The caller owns the
// context's lifecycle; closing it invalidates the page.
func NewPage(ctx context.Context, logger *zap.Logger) *ChromedpPage {
	return &ChromedpPage{ctx: ctx, logger: logger.Named("browser")}
}

// NewBrowser starts a fresh headless browser and returns its first tab plus
// a cancel function that tears the whole browser down.
func NewBrowser(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*ChromedpPage, context.CancelFunc) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		tabCancel()
		allocCancel()
	}
	return NewPage(tabCtx, logger), cancel
}

// Navigate loads the URL and waits for the load event.
func (p *ChromedpPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.logger.Debug("Navigating to URL", zap.String("url", url))

	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	opCtx, opCancel := p.opCtx(ctx)
	defer opCancel()
	navCtx, cancel := context.WithTimeout(opCtx, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", timeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Locator compiles a strategy and binds it to this page.
func (p *ChromedpPage) Locator(s schemas.Strategy) (Locator, error) {
	q, err := Compile(s)
	if err != nil {
		return nil, err
	}
	return &chromedpLocator{page: p, query: q, desc: s.String()}, nil
}

// CSSLocator binds a raw CSS selector to this page.
func (p *ChromedpPage) CSSLocator(selector string) Locator {
	return &chromedpLocator{
		page:  p,
		query: Query{Kind: QueryCSS, Expr: selector},
		desc:  fmt.Sprintf("css(%q)", selector),
	}
}

// URL reports the page's current location.
func (p *ChromedpPage) URL(ctx context.Context) (string, error) {
	var url string
	opCtx, cancel := p.opCtx(ctx)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return url, nil
}

// Evaluate runs a JavaScript expression and unmarshals the result into out.
func (p *ChromedpPage) Evaluate(ctx context.Context, js string, out any) error {
	opCtx, cancel := p.opCtx(ctx)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// WaitForLoadState blocks until the load event has fired. The listener is
// registered before the readyState probe so a load firing in between is not
// missed.
func (p *ChromedpPage) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	opCtx, opCancel := p.opCtx(ctx)
	defer opCancel()
	waitCtx, cancel := context.WithTimeout(opCtx, timeout)
	defer cancel()

	loaded := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(p.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	var ready string
	if err := chromedp.Run(waitCtx, chromedp.Evaluate("document.readyState", &ready)); err == nil && ready == "complete" {
		return nil
	}

	select {
	case <-loaded:
		return nil
	case <-waitCtx.Done():
		return fmt.Errorf("page did not reach load state within %s: %w", timeout, waitCtx.Err())
	}
}

// opCtx derives a run context honoring both the tab lifetime and the
// caller's deadline. The returned cancel must be called when the operation
// completes; it releases the caller-cancellation hook.
func (p *ChromedpPage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.ctx, func() {}
	}
	merged, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
