// internal/healer/picker.go
package healer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/browser"
)

// Picked is the first plan answer that survived validation and probing.
type Picked struct {
	Strategy   schemas.Strategy
	Locator    browser.Locator
	Confidence float64
	Reason     string
}

// Pick walks the plan in the backend's preference order and returns the
// first strategy that validates, matches exactly one element, and (unless
// skipVisibility) is visible. The backend's own ranking is trusted; there
// is no re-scoring. When nothing passes, the full rejection list comes back
// for diagnostics.
func Pick(ctx context.Context, page browser.Page, plan *schemas.HealPlan, maxTries int, skipVisibility bool, logger *zap.Logger) (*Picked, []TriedStrategy) {
	var tried []TriedStrategy

	for i, answer := range plan.Answers {
		if i >= maxTries {
			break
		}

		reject := func(reason string) {
			logger.Debug("Rejected plan strategy",
				zap.String("strategy", answer.Strategy.String()),
				zap.String("reason", reason))
			tried = append(tried, TriedStrategy{Strategy: answer.Strategy, Reason: reason})
		}

		if err := answer.Strategy.Validate(); err != nil {
			reject(err.Error())
			continue
		}

		loc, err := page.Locator(answer.Strategy)
		if err != nil {
			reject(fmt.Sprintf("could not build locator: %v", err))
			continue
		}

		count, err := loc.Count(ctx)
		if err != nil {
			reject(fmt.Sprintf("count probe failed: %v", err))
			continue
		}
		if count == 0 {
			reject("matched no elements")
			continue
		}
		if count > 1 {
			reject(fmt.Sprintf("ambiguous: matched %d elements", count))
			continue
		}

		if !skipVisibility {
			visible, err := loc.IsVisible(ctx)
			if err != nil {
				reject(fmt.Sprintf("visibility probe failed: %v", err))
				continue
			}
			if !visible {
				reject("matched one element but it is not visible")
				continue
			}
		}

		return &Picked{
			Strategy:   answer.Strategy,
			Locator:    loc,
			Confidence: answer.Confidence,
			Reason:     answer.Reason,
		}, tried
	}

	return nil, tried
}
