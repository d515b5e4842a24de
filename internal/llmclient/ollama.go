// internal/llmclient/ollama.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
	"github.com/sk3lla/mend/internal/llmutil"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// OllamaClient generates heal plans through a local Ollama server. No API
// key is involved; the endpoint defaults to the standard local port.
type OllamaClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	cfg        config.LLMConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

// NewOllamaClient initializes the client against a local or configured
// Ollama endpoint.
func NewOllamaClient(cfg config.LLMConfig, limiter *rate.Limiter, logger *zap.Logger) (*OllamaClient, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		model:      cfg.DefaultModel(),
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger.Named("llmclient.ollama"),
	}, nil
}

// GeneratePlan sends the prompt to Ollama and parses the JSON response.
func (c *OllamaClient) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	messages := make([]ollamaChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options: ollamaOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: "ollama",
			Code:     resp.StatusCode,
			Message:  llmutil.Truncate(string(respBody), 300),
		}
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if chat.Message.Content == "" {
		return nil, &ProviderError{Provider: "ollama", Message: "response contained no message content"}
	}

	usage := &schemas.TokenUsage{
		Input:  chat.PromptEvalCount,
		Output: chat.EvalCount,
		Total:  chat.PromptEvalCount + chat.EvalCount,
	}

	c.logger.Debug("Ollama generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.String("model", c.model))

	plan, err := parsePlan("ollama", chat.Message.Content, c.logger)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Plan: plan, Usage: usage}, nil
}
