// internal/browser/chromedp_locator.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrNoMatch reports that a locator's query matched nothing when an action
// needed an element.
var ErrNoMatch = errors.New("locator matched no element")

// chromedpLocator evaluates its query fresh on every call. CSS queries go
// through chromedp's native query machinery for real input events; XPath
// queries resolve through the DOM search API and in-page evaluation.
type chromedpLocator struct {
	page  *ChromedpPage
	query Query
	desc  string
}

func (l *chromedpLocator) Describe() string { return l.desc }

// queryOption picks the chromedp matcher for this query's language.
func (l *chromedpLocator) queryOption() chromedp.QueryOption {
	if l.query.Kind == QueryCSS {
		return chromedp.ByQueryAll
	}
	return chromedp.BySearch
}

// nodesJS builds a JS expression yielding the array of matched elements.
func (l *chromedpLocator) nodesJS() string {
	expr := jsString(l.query.Expr)
	if l.query.Kind == QueryCSS {
		return fmt.Sprintf("Array.from(document.querySelectorAll(%s))", expr)
	}
	return fmt.Sprintf(`(() => {
		const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
		return out;
	})()`, expr)
}

// Count reports how many elements the query currently matches.
func (l *chromedpLocator) Count(ctx context.Context) (int, error) {
	var count int
	js := fmt.Sprintf("(%s).length", l.nodesJS())
	if err := l.page.Evaluate(ctx, js, &count); err != nil {
		return 0, fmt.Errorf("count failed for %s: %w", l.desc, err)
	}
	return count, nil
}

// IsVisible reports whether the first match is rendered: attached, not
// display:none or visibility:hidden, and with a non-empty box.
func (l *chromedpLocator) IsVisible(ctx context.Context) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const nodes = %s;
		if (nodes.length === 0) return false;
		const el = nodes[0];
		const style = window.getComputedStyle(el);
		if (style.display === "none" || style.visibility === "hidden") return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, l.nodesJS())

	var visible bool
	if err := l.page.Evaluate(ctx, js, &visible); err != nil {
		return false, fmt.Errorf("visibility check failed for %s: %w", l.desc, err)
	}
	return visible, nil
}

// WaitVisible polls until the first match is visible or the timeout elapses.
func (l *chromedpLocator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		visible, err := l.IsVisible(ctx)
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s not visible after %s", l.desc, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Click sends a real mouse click to the first match.
func (l *chromedpLocator) Click(ctx context.Context) error {
	return l.run(ctx, "click", chromedp.Click(l.query.Expr, l.queryOption()))
}

// DoubleClick sends a real double click to the first match.
func (l *chromedpLocator) DoubleClick(ctx context.Context) error {
	return l.run(ctx, "dblclick", chromedp.DoubleClick(l.query.Expr, l.queryOption()))
}

// Focus moves keyboard focus to the first match.
func (l *chromedpLocator) Focus(ctx context.Context) error {
	return l.run(ctx, "focus", chromedp.Focus(l.query.Expr, l.queryOption()))
}

// Fill clears the first match and types the value into it.
func (l *chromedpLocator) Fill(ctx context.Context, value string) error {
	return l.run(ctx, "fill",
		chromedp.Clear(l.query.Expr, l.queryOption()),
		chromedp.SendKeys(l.query.Expr, value, l.queryOption()))
}

// Hover dispatches pointer-over events on the first match. CDP has no
// first-class hover, so the events are synthesized in page.
func (l *chromedpLocator) Hover(ctx context.Context) error {
	return l.evalOnFirst(ctx, "hover", `
		for (const type of ["mouseover", "mouseenter", "mousemove"]) {
			el.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
		}`)
}

// Check sets a checkbox or radio to checked, firing the usual events.
func (l *chromedpLocator) Check(ctx context.Context) error {
	return l.setChecked(ctx, "check", true)
}

// Uncheck clears a checkbox, firing the usual events.
func (l *chromedpLocator) Uncheck(ctx context.Context) error {
	return l.setChecked(ctx, "uncheck", false)
}

func (l *chromedpLocator) setChecked(ctx context.Context, action string, checked bool) error {
	return l.evalOnFirst(ctx, action, fmt.Sprintf(`
		if (el.checked !== %t) {
			el.checked = %t;
			el.dispatchEvent(new Event("input", {bubbles: true}));
			el.dispatchEvent(new Event("change", {bubbles: true}));
		}`, checked, checked))
}

// SelectOption selects the option whose value or visible label matches.
func (l *chromedpLocator) SelectOption(ctx context.Context, value string) error {
	return l.evalOnFirst(ctx, "select_option", fmt.Sprintf(`
		const wanted = %s;
		let matched = false;
		for (const opt of el.options || []) {
			if (opt.value === wanted || opt.label.trim() === wanted || opt.text.trim() === wanted) {
				el.value = opt.value;
				matched = true;
				break;
			}
		}
		if (!matched) return "no option matched " + JSON.stringify(wanted);
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));`, jsString(value)))
}

// DispatchClick fires a synthetic click on the first match with no
// actionability checks. Hidden and zero-size elements still receive it.
func (l *chromedpLocator) DispatchClick(ctx context.Context) error {
	return l.evalOnFirst(ctx, "dispatch click", `
		el.dispatchEvent(new MouseEvent("click", {bubbles: true, cancelable: true, view: window}));`)
}

// run executes chromedp actions with a deadline derived from ctx.
func (l *chromedpLocator) run(ctx context.Context, action string, actions ...chromedp.Action) error {
	opCtx, cancel := l.page.opCtx(ctx)
	defer cancel()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		return fmt.Errorf("%s failed on %s: %w", action, l.desc, err)
	}
	return nil
}

// evalOnFirst runs a JS body against the first matched element. The body
// sees the element as `el` and may return a non-empty string to signal
// failure.
func (l *chromedpLocator) evalOnFirst(ctx context.Context, action, body string) error {
	js := fmt.Sprintf(`(() => {
		const nodes = %s;
		if (nodes.length === 0) return "__no_match__";
		const el = nodes[0];
		%s
		return "";
	})()`, l.nodesJS(), body)

	var result string
	if err := l.page.Evaluate(ctx, js, &result); err != nil {
		return fmt.Errorf("%s failed on %s: %w", action, l.desc, err)
	}
	switch result {
	case "":
		return nil
	case "__no_match__":
		return fmt.Errorf("%s failed on %s: %w", action, l.desc, ErrNoMatch)
	default:
		return fmt.Errorf("%s failed on %s: %s", action, l.desc, result)
	}
}

// jsString renders a Go string as a JS string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
