package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blissai-backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

// AppendTurn stores the user message and the bot reply, in that order, in one transaction.
func (r *ChatRepo) AppendTurn(ctx context.Context, accountID uuid.UUID, userText, botText string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chat turn: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO chat_messages (account_id, text, sender) VALUES ($1, $2, $3)`

	if _, err := tx.Exec(ctx, insert, accountID, userText, models.SenderUser); err != nil {
		return fmt.Errorf("failed to insert user message: %w", err)
	}
	if _, err := tx.Exec(ctx, insert, accountID, botText, models.SenderBot); err != nil {
		return fmt.Errorf("failed to insert bot message: %w", err)
	}

	return tx.Commit(ctx)
}

// ListMessages returns the latest limit messages of an account, oldest first.
func (r *ChatRepo) ListMessages(ctx context.Context, accountID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, text, sender, created_at FROM (
			SELECT id, account_id, text, sender, created_at
			FROM chat_messages
			WHERE account_id = $1
			ORDER BY id DESC
			LIMIT $2
		) latest
		ORDER BY id ASC
	`, accountID, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ChatMessage, error) {
		var m models.ChatMessage
		err := row.Scan(&m.ID, &m.AccountID, &m.Text, &m.Sender, &m.CreatedAt)
		return m, err
	})
}

func (r *ChatRepo) SaveChat(ctx context.Context, accountID uuid.UUID, chatID string) (*models.SavedChat, error) {
	saved := &models.SavedChat{AccountID: accountID, ChatID: chatID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO saved_chats (account_id, chat_id) VALUES ($1, $2) RETURNING id, created_at`,
		accountID, chatID,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *ChatRepo) ListSavedChats(ctx context.Context, accountID uuid.UUID) ([]models.SavedChat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, chat_id, created_at
		FROM saved_chats
		WHERE account_id = $1
		ORDER BY id ASC
	`, accountID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SavedChat, error) {
		var c models.SavedChat
		err := row.Scan(&c.ID, &c.AccountID, &c.ChatID, &c.CreatedAt)
		return c, err
	})
}
