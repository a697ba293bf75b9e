package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"blissai-backend/internal/handlers"
	"blissai-backend/internal/middleware"
	"blissai-backend/internal/websocket"
)

// New mounts the session gateway. wsHub may be nil when no live feed is configured.
func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	requestTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket connections outlive the request timeout, so /ws sits outside that group.
	if wsHub != nil {
		r.Get("/ws", wsHub.HandleWebSocket)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		// ──── Public ────
		r.Post("/create_account", authHandler.CreateAccount)
		r.Post("/login", authHandler.Login)
		r.Get("/check_login_status", authHandler.CheckLoginStatus)

		// ──── Authenticated ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/chat", chatHandler.Chat)
			r.Post("/save_chat", chatHandler.SaveChat)
			r.Get("/get_chats", chatHandler.GetChats)
			r.Get("/chat_history", chatHandler.ChatHistory)
			r.Post("/change_password", authHandler.ChangePassword)
		})
	})

	return r
}
