// internal/llmclient/client.go
package llmclient

import (
	"context"
	"fmt"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/llmutil"
	"go.uber.org/zap"
)

// PlanRequest carries one completion request: a system prompt, the user
// content (description, action, candidates), and the JSON schema the
// response must match. Schema-aware providers receive the schema natively;
// the rest see it embedded in the prompt text.
type PlanRequest struct {
	System string
	User   string
	Schema string
}

// PlanResult is the normalized outcome of one backend call.
type PlanResult struct {
	Plan  *schemas.HealPlan
	Usage *schemas.TokenUsage
}

// Generator is the uniform contract every completion backend implements.
// Implementations never retry internally; the retry controller owns that.
type Generator interface {
	GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error)
}

// ProviderError is a transport-level failure from a backend, carrying the
// HTTP status when one exists. It feeds retryability classification.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

// HTTPStatus implements retry.StatusCoder.
func (e *ProviderError) HTTPStatus() int { return e.Code }

// parsePlan runs a raw model response through the lenient decoder and
// normalizes it into a HealPlan. Parse failures propagate so the retry
// controller can classify them; they are never silently swallowed.
func parsePlan(provider, raw string, logger *zap.Logger) (*schemas.HealPlan, error) {
	plan, err := llmutil.ParseJSON[schemas.HealPlan](raw)
	if err != nil {
		logger.Warn("Failed to parse model response into a heal plan",
			zap.String("provider", provider),
			zap.String("raw_response", llmutil.Truncate(raw, 500)),
			zap.Error(err))
		return nil, fmt.Errorf("%s response did not contain a heal plan: %w", provider, err)
	}
	return plan, nil
}
