package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"blissai-backend/internal/middleware"
	"blissai-backend/internal/models"
	"blissai-backend/internal/services"
)

type accountService interface {
	Register(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthToken, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, req models.ChangePasswordRequest) error
}

type sessionChecker interface {
	AccountFromRequest(r *http.Request) (uuid.UUID, bool)
}

type AuthHandler struct {
	authService accountService
	sessions    sessionChecker
	log         *slog.Logger
}

func NewAuthHandler(authService accountService, sessions sessionChecker, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions, log: log}
}

func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if isFormRequest(r) {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
		req.ConfirmPassword = r.PostFormValue("confirm-password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	account, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Account created",
		"account_id": account.ID,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if isFormRequest(r) {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	token, err := h.authService.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// CheckLoginStatus never rejects: a missing or invalid token just reports false.
func (h *AuthHandler) CheckLoginStatus(w http.ResponseWriter, r *http.Request) {
	_, ok := h.sessions.AccountFromRequest(r)
	writeJSON(w, http.StatusOK, models.LoginStatus{LoggedIn: ok})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), accountID, req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r))
	case *services.ConflictError:
		writeJSON(w, http.StatusBadRequest, errorResp("ALREADY_EXISTS", e.Message, r))
	case *services.InvalidCredentialsError:
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_CREDENTIALS", e.Message, r))
	case *services.UnauthorizedError:
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", e.Message, r))
	case *services.StoreError:
		log.Error("store operation failed", "op", e.Op, "error", e.Err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResp("STORE_ERROR", "Failed to reach the account store", r))
	case *services.UpstreamError:
		log.Error("completion provider failed", "provider", e.Provider, "status", e.StatusCode, "error", e.Err)
		if e.StatusCode != 0 {
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Completion provider returned an error", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to get AI response", r))
	default:
		log.Error("unexpected error", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
