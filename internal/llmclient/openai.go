// internal/llmclient/openai.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
)

// OpenAIClient generates heal plans through the OpenAI chat completions API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIClient initializes the client. The API key is required. A custom
// endpoint (for OpenAI-compatible gateways) is honored when configured.
func NewOpenAIClient(cfg config.LLMConfig, limiter *rate.Limiter, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.APITimeout))
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   cfg.DefaultModel(),
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("llmclient.openai"),
	}, nil
}

// GeneratePlan sends the prompt to OpenAI and parses the JSON response.
func (c *OpenAIClient) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.cfg.MaxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: "openai", Code: apiErr.StatusCode, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "response contained no choices"}
	}

	usage := &schemas.TokenUsage{
		Input:  int(resp.Usage.PromptTokens),
		Output: int(resp.Usage.CompletionTokens),
		Total:  int(resp.Usage.TotalTokens),
	}

	c.logger.Debug("OpenAI generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.String("model", c.model))

	plan, err := parsePlan("openai", resp.Choices[0].Message.Content, c.logger)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Plan: plan, Usage: usage}, nil
}
