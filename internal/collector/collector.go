// internal/collector/collector.go

// Package collector samples interactive DOM elements and ranks them by
// relevance to a human description, bounding what is sent to a model.
package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/browser"
)

// actionSelectors maps each action kind to the CSS selector set that covers
// its plausible targets. Kinds without an entry borrow another kind's set
// via candidateKind.
var actionSelectors = map[schemas.ActionKind]string{
	schemas.ActionClick: `a, button, input[type="button"], input[type="submit"], input[type="reset"],` +
		` input[type="checkbox"], input[type="radio"], summary, [role="button"], [role="link"],` +
		` [role="menuitem"], [role="tab"], [role="switch"], [onclick], label,` +
		` [data-testid], [data-test-id], [data-test], [data-qa], [data-cy]`,
	schemas.ActionFill: `input:not([type="button"]):not([type="submit"]):not([type="reset"]):not([type="checkbox"]):not([type="radio"]),` +
		` textarea, [contenteditable="true"], [role="textbox"], [role="searchbox"]`,
	schemas.ActionSelect: `select, [role="combobox"], [role="listbox"]`,
}

// candidateKind is the fixed reuse table: actions whose target population is
// the same as another action's borrow that action's selector set.
var candidateKind = map[schemas.ActionKind]schemas.ActionKind{
	schemas.ActionHover:       schemas.ActionClick,
	schemas.ActionDoubleClick: schemas.ActionClick,
	schemas.ActionFocus:       schemas.ActionClick,
	schemas.ActionCheck:       schemas.ActionFill,
	schemas.ActionUncheck:     schemas.ActionFill,
}

// samplerJS extracts sparse candidate snapshots in one page round-trip.
// Hidden elements are kept and flagged rather than discarded; a CSS-hidden
// input can still be a valid fill target.
const samplerJS = `(() => {
	const seen = new Set();
	const out = [];
	const els = document.querySelectorAll(%s);
	const max = %d;
	const testIdAttrs = ["data-testid", "data-test-id", "data-test", "data-qa", "data-cy"];
	for (const el of els) {
		if (out.length >= max) break;
		if (seen.has(el)) continue;
		seen.add(el);
		const c = {tag: el.tagName.toLowerCase()};
		const put = (key, val) => { if (val) c[key] = val; };
		put("role", el.getAttribute("role"));
		put("ariaLabel", el.getAttribute("aria-label"));
		put("name", el.getAttribute("name"));
		put("placeholder", el.getAttribute("placeholder"));
		put("inputType", el.getAttribute("type"));
		put("href", el.getAttribute("href"));
		put("alt", el.getAttribute("alt"));
		put("title", el.getAttribute("title"));
		put("for", el.getAttribute("for"));
		put("id", el.id);
		put("classes", (typeof el.className === "string" ? el.className : "").trim().slice(0, 80));
		const text = (el.innerText || el.textContent || "").trim().replace(/\s+/g, " ");
		put("text", text.slice(0, 80));
		for (const attr of testIdAttrs) {
			const v = el.getAttribute(attr);
			if (v) { c.testId = v; break; }
		}
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		if (style.display === "none" || style.visibility === "hidden" || rect.width === 0 || rect.height === 0) {
			c.hidden = true;
		}
		out.push(c);
	}
	return out;
})()`

// Collect samples the DOM for elements a model could match against the
// description. Results come back in DOM order, capped at maxCandidates.
func Collect(ctx context.Context, page browser.Page, action schemas.ActionKind, maxCandidates int, logger *zap.Logger) ([]schemas.Candidate, error) {
	kind := action
	if borrowed, ok := candidateKind[action]; ok {
		kind = borrowed
	}
	selector, ok := actionSelectors[kind]
	if !ok {
		selector = actionSelectors[schemas.ActionClick]
	}

	js := fmt.Sprintf(samplerJS, jsString(selector), maxCandidates)

	var candidates []schemas.Candidate
	if err := page.Evaluate(ctx, js, &candidates); err != nil {
		return nil, fmt.Errorf("candidate sampling failed: %w", err)
	}

	logger.Debug("Collected DOM candidates",
		zap.String("action", string(action)),
		zap.Int("count", len(candidates)))
	return candidates, nil
}

// jsString renders a Go string as a JS string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
