package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/useCases"
	"github.com/redis-developer/beats-by-redis/internal/metrics"
)

// WebSocketBroadcaster pushes dashboard updates to every registered viewer.
// Each push is independent: a failed write closes and removes that one
// connection and never aborts delivery to the rest.
type WebSocketBroadcaster struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
	writeMu  sync.Mutex // gorilla connections allow one concurrent writer
}

func NewWebSocketBroadcaster(registry *Registry, logger *slog.Logger) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		registry: registry,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

var _ useCases.Broadcaster = (*WebSocketBroadcaster)(nil)

func (b *WebSocketBroadcaster) Broadcast(update *dto.DashboardUpdate) {
	msg, err := json.Marshal(update)
	if err != nil {
		b.logger.Error("failed to marshal dashboard update", "error", err)
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	for _, conn := range b.registry.Snapshot() {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Warn("websocket write error, dropping viewer", "error", err)
			conn.Close()
			b.registry.Remove(conn)
			continue
		}
		metrics.BroadcastMessages.Inc()
	}
}

// Handler returns an http.HandlerFunc that upgrades the request and keeps the
// connection registered until the viewer disconnects.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade error", "error", err)
			return
		}
		b.registry.Add(conn)

		// Read loop: we discard viewer messages but need the reads to learn
		// about disconnects.
		go func() {
			defer func() {
				b.registry.Remove(conn)
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
