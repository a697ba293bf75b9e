package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"blissai-backend/internal/middleware"
	"blissai-backend/internal/models"
	"blissai-backend/internal/services"
)

type stubCompletion struct {
	reply    string
	err      error
	calls    int
	messages []models.CompletionMessage
}

func (s *stubCompletion) Complete(ctx context.Context, messages []models.CompletionMessage) (string, error) {
	s.calls++
	s.messages = messages
	return s.reply, s.err
}

type recordedTurn struct {
	accountID uuid.UUID
	userText  string
	botText   string
}

type stubHistory struct {
	turns     []recordedTurn
	recordErr error
	saved     []string
	saveErr   error
	listErr   error
	limit     int
	messages  []models.ChatMessage
}

func (s *stubHistory) Record(ctx context.Context, accountID uuid.UUID, userText, botText string) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.turns = append(s.turns, recordedTurn{accountID, userText, botText})
	return nil
}

func (s *stubHistory) History(ctx context.Context, accountID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	s.limit = limit
	return s.messages, s.listErr
}

func (s *stubHistory) SaveChat(ctx context.Context, accountID uuid.UUID, req models.SaveChatRequest) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, req.ChatID)
	return nil
}

func (s *stubHistory) SavedChatIDs(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.saved, nil
}

func authedRequest(method, target, body string, accountID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, accountID))
}

func TestChat_RecordsTurn(t *testing.T) {
	accountID := uuid.New()
	completion := &stubCompletion{reply: "Hello!"}
	history := &stubHistory{}
	h := NewChatHandler(completion, history, discardLogger())

	body := `{"message":"Hi","history":[{"role":"user","content":"earlier"},{"role":"system","content":"ignored"},{"role":"assistant","content":"ok"}]}`
	rr := httptest.NewRecorder()
	h.Chat(rr, authedRequest(http.MethodPost, "/chat", body, accountID))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, "Hello!", resp.Response)

	require.Equal(t, []models.CompletionMessage{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "Hi"},
	}, completion.messages)
	require.Equal(t, []recordedTurn{{accountID, "Hi", "Hello!"}}, history.turns)
}

func TestChat_MissingMessage(t *testing.T) {
	completion := &stubCompletion{reply: "unused"}
	history := &stubHistory{}
	h := NewChatHandler(completion, history, discardLogger())

	rr := httptest.NewRecorder()
	h.Chat(rr, authedRequest(http.MethodPost, "/chat", `{"message":"   "}`, uuid.New()))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Message is required", decodeError(t, rr).Message)
	require.Zero(t, completion.calls)
	require.Empty(t, history.turns)
}

func TestChat_RecordFailureStillReplies(t *testing.T) {
	completion := &stubCompletion{reply: "Hello!"}
	history := &stubHistory{recordErr: &services.StoreError{Op: "append chat turn", Err: errors.New("down")}}
	h := NewChatHandler(completion, history, discardLogger())

	rr := httptest.NewRecorder()
	h.Chat(rr, authedRequest(http.MethodPost, "/chat", `{"message":"Hi"}`, uuid.New()))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Hello!")
}

func TestChat_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"provider status", &services.UpstreamError{Provider: "openai", StatusCode: 503, Err: errors.New("overloaded")}, http.StatusBadGateway},
		{"no response", &services.UpstreamError{Provider: "openai", Err: context.DeadlineExceeded}, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			history := &stubHistory{}
			h := NewChatHandler(&stubCompletion{err: tc.err}, history, discardLogger())

			rr := httptest.NewRecorder()
			h.Chat(rr, authedRequest(http.MethodPost, "/chat", `{"message":"Hi"}`, uuid.New()))

			require.Equal(t, tc.wantCode, rr.Code)
			require.Empty(t, history.turns)
		})
	}
}

func TestSaveChatThenGetChats(t *testing.T) {
	accountID := uuid.New()
	history := &stubHistory{}
	h := NewChatHandler(&stubCompletion{}, history, discardLogger())

	for _, id := range []string{"c1", "c2", "c1"} {
		rr := httptest.NewRecorder()
		h.SaveChat(rr, authedRequest(http.MethodPost, "/save_chat", `{"chatId":"`+id+`"}`, accountID))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.GetChats(rr, authedRequest(http.MethodGet, "/get_chats", "", accountID))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.SavedChatsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, []string{"c1", "c2", "c1"}, resp.Chats)
}

func TestSaveChat_ValidationError(t *testing.T) {
	history := &stubHistory{saveErr: &services.ValidationError{Fields: map[string]string{"chatId": "chatId is required"}}}
	h := NewChatHandler(&stubCompletion{}, history, discardLogger())

	rr := httptest.NewRecorder()
	h.SaveChat(rr, authedRequest(http.MethodPost, "/save_chat", `{}`, uuid.New()))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "chatId is required", decodeError(t, rr).Fields["chatId"])
}

func TestGetChats_StoreError(t *testing.T) {
	history := &stubHistory{listErr: &services.StoreError{Op: "list saved chats", Err: errors.New("down")}}
	h := NewChatHandler(&stubCompletion{}, history, discardLogger())

	rr := httptest.NewRecorder()
	h.GetChats(rr, authedRequest(http.MethodGet, "/get_chats", "", uuid.New()))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestChatHistory_Limit(t *testing.T) {
	history := &stubHistory{messages: []models.ChatMessage{{ID: 1, Text: "Hi", Sender: models.SenderUser}}}
	h := NewChatHandler(&stubCompletion{}, history, discardLogger())

	rr := httptest.NewRecorder()
	h.ChatHistory(rr, authedRequest(http.MethodGet, "/chat_history?limit=5", "", uuid.New()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 5, history.limit)

	var resp models.ChatHistoryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)

	rr = httptest.NewRecorder()
	h.ChatHistory(rr, authedRequest(http.MethodGet, "/chat_history?limit=abc", "", uuid.New()))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChat_UsesStoredContextWithoutClientHistory(t *testing.T) {
	accountID := uuid.New()
	completion := &stubCompletion{reply: "Fine, thanks"}
	history := &stubHistory{messages: []models.ChatMessage{
		{ID: 1, AccountID: accountID, Text: "Hi", Sender: models.SenderUser},
		{ID: 2, AccountID: accountID, Text: "Hello!", Sender: models.SenderBot},
	}}
	h := NewChatHandler(completion, history, discardLogger())

	rr := httptest.NewRecorder()
	h.Chat(rr, authedRequest(http.MethodPost, "/chat", `{"message":"How are you?"}`, accountID))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, chatContextLimit, history.limit)
	require.Equal(t, []models.CompletionMessage{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
		{Role: "user", Content: "How are you?"},
	}, completion.messages)
}

func TestChat_ClientHistoryTakesPrecedence(t *testing.T) {
	completion := &stubCompletion{reply: "ok"}
	history := &stubHistory{messages: []models.ChatMessage{{ID: 1, Text: "stored", Sender: models.SenderUser}}}
	h := NewChatHandler(completion, history, discardLogger())

	body := `{"message":"Hi","history":[{"role":"user","content":"from client"}]}`
	rr := httptest.NewRecorder()
	h.Chat(rr, authedRequest(http.MethodPost, "/chat", body, uuid.New()))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, history.limit, "stored history must not be loaded")
	require.Equal(t, []models.CompletionMessage{
		{Role: "user", Content: "from client"},
		{Role: "user", Content: "Hi"},
	}, completion.messages)
}

func TestChat_ContextLoadFailureStillReplies(t *testing.T) {
	completion := &stubCompletion{reply: "ok"}
	history := &stubHistory{listErr: &services.StoreError{Op: "list messages", Err: errors.New("down")}}
	h := NewChatHandler(completion, history, discardLogger())

	rr := httptest.NewRecorder()
	h.Chat(rr, authedRequest(http.MethodPost, "/chat", `{"message":"Hi"}`, uuid.New()))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []models.CompletionMessage{{Role: "user", Content: "Hi"}}, completion.messages)
}
