// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sk3lla/mend/internal/config"
)

// NewGenerator is a factory that creates the configured completion backend.
// The provider is fixed at construction time; nothing downstream ever
// inspects the concrete type.
func NewGenerator(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	if cfg.RateLimit <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGoogleClient(ctx, cfg, limiter, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, limiter, logger)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, limiter, logger)
	case config.ProviderOllama:
		return NewOllamaClient(cfg, limiter, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported provider configured: %q. Supported: %v",
			cfg.Provider, config.Providers())
	}
}
