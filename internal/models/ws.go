package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ChatTurn is published after both sides of a turn were recorded.
type ChatTurn struct {
	AccountID  uuid.UUID `json:"account_id"`
	UserText   string    `json:"user_text"`
	BotText    string    `json:"bot_text"`
	RecordedAt time.Time `json:"recorded_at"`
}
