// internal/browser/driver.go
package browser

import (
	"context"
	"time"

	"github.com/sk3lla/mend/api/schemas"
)

// Page is the automation surface the resolution engine drives. The engine
// never talks to a browser protocol directly; everything flows through this
// contract so the healing logic stays driver agnostic.
type Page interface {
	// Locator compiles a strategy into an element handle. The strategy is
	// validated before compilation; invalid strategies never reach the page.
	Locator(s schemas.Strategy) (Locator, error)

	// CSSLocator wraps a raw CSS selector, as written in a test's declared
	// locator, without going through strategy compilation.
	CSSLocator(selector string) Locator

	// URL reports the page's current location.
	URL(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression in the page and unmarshals the
	// result into out. A nil out discards the result.
	Evaluate(ctx context.Context, js string, out any) error

	// WaitForLoadState blocks until the page reaches the load event or the
	// timeout elapses.
	WaitForLoadState(ctx context.Context, timeout time.Duration) error
}

// Locator is a lazy handle on the element(s) a query matches. Queries are
// re-evaluated on every call; nothing is pinned to a node id.
type Locator interface {
	Count(ctx context.Context) (int, error)
	IsVisible(ctx context.Context) (bool, error)
	WaitVisible(ctx context.Context, timeout time.Duration) error

	Click(ctx context.Context) error
	DoubleClick(ctx context.Context) error
	Hover(ctx context.Context) error
	Focus(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Check(ctx context.Context) error
	Uncheck(ctx context.Context) error
	SelectOption(ctx context.Context, value string) error

	// DispatchClick fires a synthetic click event on the first match without
	// any visibility or actionability gating. Used by forced resolution.
	DispatchClick(ctx context.Context) error

	// Describe renders the locator for diagnostics and log records.
	Describe() string
}
