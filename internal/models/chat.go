package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// ChatMessage is one persisted side of a chat turn.
type ChatMessage struct {
	ID        int64     `json:"id"`
	AccountID uuid.UUID `json:"-"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"` // "user" or "bot"
	CreatedAt time.Time `json:"created_at"`
}

type SavedChat struct {
	ID        int64     `json:"id"`
	AccountID uuid.UUID `json:"-"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletionMessage is a single entry of the conversation sent to the completion provider.
type CompletionMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string              `json:"message"`
	History []CompletionMessage `json:"history"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type SaveChatRequest struct {
	ChatID string `json:"chatId" validate:"required"`
}

type SavedChatsResponse struct {
	Chats []string `json:"chats"`
}

type ChatHistoryResponse struct {
	Messages []ChatMessage `json:"messages"`
}
