package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"blissai-backend/internal/models"
)

type GeminiProvider struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	slots   chan struct{} // bounds concurrent upstream calls
	timeout time.Duration
	log     *slog.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string, concurrentReqs int, timeout time.Duration, log *slog.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)

	slots := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		slots <- struct{}{}
	}

	return &GeminiProvider{
		client:  client,
		model:   model,
		slots:   slots,
		timeout: timeout,
		log:     log,
	}, nil
}

func (p *GeminiProvider) Close() {
	p.client.Close()
}

// acquire blocks until an upstream slot is free or ctx is done.
func (p *GeminiProvider) acquire(ctx context.Context) error {
	select {
	case <-p.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *GeminiProvider) release() {
	p.slots <- struct{}{}
}

func (p *GeminiProvider) Complete(ctx context.Context, messages []models.CompletionMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("gemini: no messages to complete")
	}

	ctx, cancel := withCompletionTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.acquire(ctx); err != nil {
		return "", &UpstreamError{Provider: "gemini", Err: err}
	}
	defer p.release()

	history, last := toGeminiHistory(messages)
	cs := p.model.StartChat()
	cs.History = history

	start := time.Now()
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		p.log.Error("gemini completion failed", "error", err, "latency_ms", time.Since(start).Milliseconds())
		upstream := &UpstreamError{Provider: "gemini", Err: err}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			upstream.StatusCode = apiErr.Code
		}
		return "", upstream
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			p.log.Warn("gemini candidate stopped early", "candidate", i, "finish_reason", cand.FinishReason)
		}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return fallbackReply, nil
	}

	p.log.Debug("gemini completion done", "latency_ms", time.Since(start).Milliseconds(), "length", len(text))
	return text, nil
}

// toGeminiHistory splits the conversation into prior turns and the message to send.
func toGeminiHistory(messages []models.CompletionMessage) ([]*genai.Content, string) {
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history, messages[len(messages)-1].Content
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
