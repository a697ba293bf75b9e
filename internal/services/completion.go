package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blissai-backend/internal/config"
	"blissai-backend/internal/models"
)

// CompletionProvider turns a conversation into the assistant's next reply.
type CompletionProvider interface {
	Complete(ctx context.Context, messages []models.CompletionMessage) (string, error)
}

// fallbackReply is returned when the provider answers without any candidate text.
const fallbackReply = "No response"

// NewCompletionProvider builds the provider selected by COMPLETION_PROVIDER.
func NewCompletionProvider(ctx context.Context, cfg *config.Config, log *slog.Logger) (CompletionProvider, func(), error) {
	switch cfg.CompletionProvider {
	case "gemini":
		p, err := NewGeminiProvider(ctx, cfg.CompletionAPIKey, cfg.CompletionModel, cfg.CompletionConcurrency, cfg.CompletionTimeout, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case "openai":
		p := NewOpenAIProvider(cfg.CompletionAPIURL, cfg.CompletionAPIKey, cfg.CompletionModel, cfg.CompletionTimeout, log)
		return p, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown completion provider %q", cfg.CompletionProvider)
	}
}

func withCompletionTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
