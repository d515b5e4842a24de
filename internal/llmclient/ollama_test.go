// internal/llmclient/ollama_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/config"
	"github.com/sk3lla/mend/internal/retry"
)

const planBody = `{"answers":[{"strategy":{"type":"testid","value":"login-btn"},"confidence":0.9,"reason":"stable test id"}]}`

func ollamaReply(content string) string {
	reply := map[string]any{
		"message":           map[string]string{"role": "assistant", "content": content},
		"done":              true,
		"prompt_eval_count": 120,
		"eval_count":        45,
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

func newTestOllama(t *testing.T, endpoint string) *OllamaClient {
	t.Helper()
	cfg := config.LLMConfig{
		Provider: config.ProviderOllama,
		Endpoint: endpoint,
	}
	client, err := NewOllamaClient(cfg, rate.NewLimiter(rate.Inf, 1), zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestOllamaGeneratePlan_Success(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(ollamaReply(planBody)))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL)
	result, err := client.GeneratePlan(context.Background(), PlanRequest{
		System: "you are a locator engine",
		User:   "find the login button",
	})
	require.NoError(t, err)

	require.Len(t, result.Plan.Answers, 1)
	answer := result.Plan.Answers[0]
	assert.Equal(t, schemas.StrategyTestID, answer.Strategy.Type)
	assert.Equal(t, "login-btn", answer.Strategy.Value)
	assert.InDelta(t, 0.9, answer.Confidence, 0.001)

	require.NotNil(t, result.Usage)
	assert.Equal(t, 120, result.Usage.Input)
	assert.Equal(t, 45, result.Usage.Output)
	assert.Equal(t, 165, result.Usage.Total)

	// The request carries both roles, non-streaming, JSON format forced.
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, "json", gotReq.Format)
}

func TestOllamaGeneratePlan_LenientParse(t *testing.T) {
	fenced := "Here is the plan:\n```json\n" + planBody + "\n```\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ollamaReply(fenced)))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL)
	result, err := client.GeneratePlan(context.Background(), PlanRequest{User: "find it"})
	require.NoError(t, err)
	require.Len(t, result.Plan.Answers, 1)
	assert.Equal(t, "login-btn", result.Plan.Answers[0].Strategy.Value)
}

func TestOllamaGeneratePlan_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL)
	_, err := client.GeneratePlan(context.Background(), PlanRequest{User: "find it"})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusInternalServerError, provErr.Code)
	assert.Equal(t, "ollama", provErr.Provider)
}

func TestOllamaGeneratePlan_RetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(ollamaReply(planBody)))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL)

	var result *PlanResult
	err := retry.Do(context.Background(), zap.NewNop(), func() error {
		var opErr error
		result, opErr = client.GeneratePlan(context.Background(), PlanRequest{User: "find it"})
		return opErr
	}, 2, time.Millisecond)

	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	require.NotNil(t, result)
	require.Len(t, result.Plan.Answers, 1)
}

func TestOllamaGeneratePlan_FatalStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL)

	err := retry.Do(context.Background(), zap.NewNop(), func() error {
		_, opErr := client.GeneratePlan(context.Background(), PlanRequest{User: "find it"})
		return opErr
	}, 2, time.Millisecond)

	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusUnauthorized, provErr.Code)
}

func TestOllamaGeneratePlan_UnparseableContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ollamaReply("I cannot help with that.")))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL)
	_, err := client.GeneratePlan(context.Background(), PlanRequest{User: "find it"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not contain a heal plan")
}
