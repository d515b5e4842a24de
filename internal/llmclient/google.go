// internal/llmclient/google.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
)

// GoogleClient generates heal plans through the Gemini API.
type GoogleClient struct {
	client  *genai.Client
	model   string
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGoogleClient initializes the client. The API key is required.
func NewGoogleClient(ctx context.Context, cfg config.LLMConfig, limiter *rate.Limiter, logger *zap.Logger) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleClient{
		client:  client,
		model:   cfg.DefaultModel(),
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("llmclient.gemini"),
	}, nil
}

// GeneratePlan sends the prompt to Gemini and parses the JSON response.
func (c *GoogleClient) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.User), genCfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: "gemini", Code: apiErr.Code, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderError{Provider: "gemini", Message: "response contained no candidates"}
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		content += part.Text
	}

	var usage *schemas.TokenUsage
	if resp.UsageMetadata != nil {
		usage = &schemas.TokenUsage{
			Input:  int(resp.UsageMetadata.PromptTokenCount),
			Output: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	c.logger.Debug("Gemini generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.String("model", c.model))

	plan, err := parsePlan("gemini", content, c.logger)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Plan: plan, Usage: usage}, nil
}
