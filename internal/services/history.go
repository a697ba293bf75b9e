package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"blissai-backend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryChannel is the Redis pub/sub channel carrying an account's recorded turns.
func HistoryChannel(accountID uuid.UUID) string {
	return "chat_history:" + accountID.String()
}

// HistoryRecorder persists chat turns and saved chat ids for authenticated accounts.
type HistoryRecorder struct {
	chats     ChatStore
	publisher Publisher
	now       func() time.Time
	log       *slog.Logger
}

// NewHistoryRecorder accepts a nil publisher when no live feed is configured.
func NewHistoryRecorder(chats ChatStore, publisher Publisher, log *slog.Logger) *HistoryRecorder {
	return &HistoryRecorder{
		chats:     chats,
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

// Record appends the user message and the bot reply of one turn. Callers must
// have verified the session of accountID.
func (h *HistoryRecorder) Record(ctx context.Context, accountID uuid.UUID, userText, botText string) error {
	if err := h.chats.AppendTurn(ctx, accountID, userText, botText); err != nil {
		return &StoreError{Op: "append chat turn", Err: err}
	}

	if h.publisher != nil {
		msg := models.WSMessage{
			Type: "chat_turn",
			Payload: models.ChatTurn{
				AccountID:  accountID,
				UserText:   userText,
				BotText:    botText,
				RecordedAt: h.now().UTC(),
			},
		}
		if err := h.publisher.Publish(ctx, HistoryChannel(accountID), msg); err != nil {
			h.log.Warn("failed to publish chat turn", "account_id", accountID, "error", err)
		}
	}
	return nil
}

// History returns up to limit of the account's latest messages, oldest first.
func (h *HistoryRecorder) History(ctx context.Context, accountID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := h.chats.ListMessages(ctx, accountID, limit)
	if err != nil {
		return nil, &StoreError{Op: "list messages", Err: err}
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

func (h *HistoryRecorder) SaveChat(ctx context.Context, accountID uuid.UUID, req models.SaveChatRequest) error {
	req.ChatID = strings.TrimSpace(req.ChatID)
	if err := validateRequest(req); err != nil {
		return err
	}

	if _, err := h.chats.SaveChat(ctx, accountID, req.ChatID); err != nil {
		return &StoreError{Op: "save chat", Err: err}
	}
	return nil
}

// SavedChatIDs lists the external chat ids saved by an account, duplicates included.
func (h *HistoryRecorder) SavedChatIDs(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	saved, err := h.chats.ListSavedChats(ctx, accountID)
	if err != nil {
		return nil, &StoreError{Op: "list saved chats", Err: err}
	}

	return lo.Map(saved, func(item models.SavedChat, _ int) string {
		return item.ChatID
	}), nil
}

// RedisPublisher publishes JSON-encoded messages on Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.client.Publish(ctx, channel, data).Err()
}
