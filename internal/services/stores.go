//go:generate go run go.uber.org/mock/mockgen -source=stores.go -destination=../mocks/mock_stores.go -package=mocks
package services

import (
	"context"

	"github.com/google/uuid"

	"blissai-backend/internal/models"
)

// AccountStore is the slice of the account repository the credential manager needs.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type ChatStore interface {
	AppendTurn(ctx context.Context, accountID uuid.UUID, userText, botText string) error
	ListMessages(ctx context.Context, accountID uuid.UUID, limit int) ([]models.ChatMessage, error)
	SaveChat(ctx context.Context, accountID uuid.UUID, chatID string) (*models.SavedChat, error)
	ListSavedChats(ctx context.Context, accountID uuid.UUID) ([]models.SavedChat, error)
}

// Publisher fans a recorded turn out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}
