package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"blissai-backend/internal/services"
)

const defaultWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenVerifier interface {
	Verify(token string) (uuid.UUID, bool)
}

// Hub relays recorded chat turns from Redis pub/sub to the account's open sockets.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
	cancelFuncs map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	tokens      tokenVerifier
	writeWait   time.Duration
	log         *slog.Logger
}

// NewHub accepts a nil redisClient, in which case sockets are accepted but never fed.
func NewHub(redisClient *redis.Client, tokens tokenVerifier, log *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		tokens:      tokens,
		writeWait:   defaultWriteWait,
		log:         log,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade request, so the token rides in the query.
	accountID, ok := h.tokens.Verify(r.URL.Query().Get("token"))
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.registerConnection(accountID, conn)

	// Drain reads until the client goes away.
	go func() {
		defer h.unregisterConnection(accountID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(accountID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[accountID] = append(h.connections[accountID], conn)

	// First socket for this account opens the subscription.
	if len(h.connections[accountID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[accountID] = cancel
		go h.subscribe(ctx, accountID)
	}

	h.log.Info("websocket connected", "account_id", accountID, "connections", len(h.connections[accountID]))
}

func (h *Hub) unregisterConnection(accountID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[accountID]
	for i, c := range conns {
		if c == conn {
			h.connections[accountID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[accountID]) == 0 {
		delete(h.connections, accountID)
		if cancel, ok := h.cancelFuncs[accountID]; ok {
			cancel()
			delete(h.cancelFuncs, accountID)
		}
	}

	h.log.Info("websocket disconnected", "account_id", accountID)
}

func (h *Hub) subscribe(ctx context.Context, accountID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.HistoryChannel(accountID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(accountID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(accountID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*websocket.Conn(nil), h.connections[accountID]...)
	h.mu.RUnlock()

	// Writes happen outside the lock so a stalled client cannot block other accounts.
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("websocket write failed", "account_id", accountID, "error", err)
		}
	}
}

// Connections reports how many sockets are open for an account.
func (h *Hub) Connections(accountID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[accountID])
}
