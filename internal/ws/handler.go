package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veil-waf/phishguard/internal/handlers"
	"github.com/veil-waf/phishguard/internal/ratelimit"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 8 << 10
)

// Checker analyzes one URL on behalf of a client.
type Checker interface {
	Check(ctx context.Context, rawURL, clientIP string) (*handlers.CheckResponse, error)
}

// Limiter charges tokens per client.
type Limiter interface {
	Allow(bucketName, key string, n int) bool
}

// Manager tracks active WebSocket connections and answers URL checks sent
// over them.
type Manager struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	checker     Checker
	limiter     Limiter
	logger      *slog.Logger
}

// NewManager creates a new WebSocket manager. limiter may be nil.
func NewManager(checker Checker, limiter Limiter, logger *slog.Logger) *Manager {
	return &Manager{
		connections: make(map[*websocket.Conn]struct{}),
		checker:     checker,
		limiter:     limiter,
		logger:      logger,
	}
}

type checkMessage struct {
	URL string `json:"url"`
}

// HandleWS upgrades an HTTP connection to WebSocket. Each text frame
// {"url": "..."} is answered with the same body POST /checkURL returns.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	m.mu.Lock()
	m.connections[conn] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	ip := ratelimit.ClientIP(r)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		reply := m.answer(r.Context(), data, ip)
		if err := m.sendJSON(conn, reply); err != nil {
			m.logger.Warn("websocket write failed", "err", err)
			return
		}
	}
}

func (m *Manager) answer(ctx context.Context, data []byte, ip string) any {
	var msg checkMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.URL == "" {
		return handlers.ErrorResponse{Error: true, Message: "No URL provided"}
	}
	if m.limiter != nil && !m.limiter.Allow("ws", ip, 1) {
		return handlers.ErrorResponse{Error: true, URL: msg.URL, Message: "Rate limited"}
	}
	resp, err := m.checker.Check(ctx, msg.URL, ip)
	if err != nil {
		return handlers.ScoringError(msg.URL, err)
	}
	return resp
}

func (m *Manager) sendJSON(conn *websocket.Conn, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// CloseAll sends a going-away close frame to every client and closes the
// connections. Used during shutdown, since http.Server.Shutdown does not
// touch hijacked connections.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range m.connections {
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		delete(m.connections, conn)
	}
}
