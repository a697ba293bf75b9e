package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"

	"blissai-backend/internal/models"
)

// OpenAIProvider talks to any endpoint speaking the OpenAI chat-completions protocol.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *slog.Logger
}

func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration, log *slog.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []models.CompletionMessage) (string, error) {
	logger := p.log.With("provider", "openai", "model", p.model)

	ctx, cancel := withCompletionTimeout(ctx, p.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: lo.Map(messages, func(m models.CompletionMessage, _ int) openai.ChatCompletionMessage {
			return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		}),
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		upstream := &UpstreamError{Provider: "openai", StatusCode: openAIStatus(err), Err: err}
		logger.Error("chat request failed", "status", upstream.StatusCode, "error", err, "latency_ms", time.Since(start).Milliseconds())
		return "", upstream
	}

	logger.Debug("chat request completed", "latency_ms", time.Since(start).Milliseconds(), "choices", len(resp.Choices))

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return fallbackReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// openAIStatus extracts the HTTP status of a provider answer, or 0 when none was received.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
