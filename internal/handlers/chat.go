package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"blissai-backend/internal/middleware"
	"blissai-backend/internal/models"
	"blissai-backend/internal/services"
)

// chatContextLimit is how many stored messages are replayed when the client sends no history.
const chatContextLimit = 20

type historyService interface {
	Record(ctx context.Context, accountID uuid.UUID, userText, botText string) error
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]models.ChatMessage, error)
	SaveChat(ctx context.Context, accountID uuid.UUID, req models.SaveChatRequest) error
	SavedChatIDs(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

type ChatHandler struct {
	completion services.CompletionProvider
	history    historyService
	log        *slog.Logger
}

func NewChatHandler(completion services.CompletionProvider, history historyService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		completion: completion,
		history:    history,
		log:        log,
	}
}

// Chat forwards the message to the completion provider and records the turn.
// A failed recording is logged; the reply is still returned.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	history := req.History
	if len(history) == 0 {
		history = h.storedContext(r.Context(), accountID)
	}

	messages := make([]models.CompletionMessage, 0, len(history)+1)
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, models.CompletionMessage{Role: "user", Content: req.Message})

	reply, err := h.completion.Complete(r.Context(), messages)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	if err := h.history.Record(r.Context(), accountID, req.Message, reply); err != nil {
		h.log.Error("failed to record chat turn", "account_id", accountID, "error", err)
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Response: reply})
}

// storedContext loads the account's recent turns as completion context. A failed
// load only costs context, so the chat goes ahead without it.
func (h *ChatHandler) storedContext(ctx context.Context, accountID uuid.UUID) []models.CompletionMessage {
	stored, err := h.history.History(ctx, accountID, chatContextLimit)
	if err != nil {
		h.log.Warn("failed to load chat context", "account_id", accountID, "error", err)
		return nil
	}

	return lo.Map(stored, func(m models.ChatMessage, _ int) models.CompletionMessage {
		role := "user"
		if m.Sender == models.SenderBot {
			role = "assistant"
		}
		return models.CompletionMessage{Role: role, Content: m.Text}
	})
}

func (h *ChatHandler) SaveChat(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	var req models.SaveChatRequest
	if isFormRequest(r) {
		req.ChatID = r.PostFormValue("chatId")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.history.SaveChat(r.Context(), accountID, req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat saved"})
}

func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	ids, err := h.history.SavedChatIDs(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SavedChatsResponse{Chats: ids})
}

func (h *ChatHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"limit": "limit must be a positive integer"}, r))
			return
		}
		limit = n
	}

	messages, err := h.history.History(r.Context(), accountID, limit)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatHistoryResponse{Messages: messages})
}
