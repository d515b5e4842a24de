// internal/llmclient/anthropic.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
)

// AnthropicClient generates heal plans through the Anthropic messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewAnthropicClient initializes the client. The API key is required.
func NewAnthropicClient(cfg config.LLMConfig, limiter *rate.Limiter, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APITimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.APITimeout))
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   cfg.DefaultModel(),
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("llmclient.anthropic"),
	}, nil
}

// GeneratePlan sends the prompt to Anthropic and parses the JSON response.
func (c *AnthropicClient) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	maxTokens := int64(c.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: "anthropic", Code: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return nil, &ProviderError{Provider: "anthropic", Message: "response contained no text blocks"}
	}

	usage := &schemas.TokenUsage{
		Input:  int(resp.Usage.InputTokens),
		Output: int(resp.Usage.OutputTokens),
		Total:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	c.logger.Debug("Anthropic generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.String("model", c.model))

	plan, err := parsePlan("anthropic", content, c.logger)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Plan: plan, Usage: usage}, nil
}
