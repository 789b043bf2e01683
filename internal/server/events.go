package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventConfigLoaded     = "config_loaded"
	EventLanguageSelected = "language_selected"

	writeWait     = 10 * time.Second
	subscriberBuf = 16
)

// Event is pushed to every /v1/events subscriber after the store changes.
type Event struct {
	Event     string `json:"event"`
	ID        string `json:"id"`
	Language  string `json:"language"`
	Timestamp int64  `json:"timestamp"`
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// hub fans store events out to websocket subscribers. A subscriber whose
// buffer is full misses the event rather than blocking the store.
type hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]*subscriber
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[string]*subscriber),
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) broadcast(name, language string) {
	data, err := json.Marshal(Event{
		Event:     name,
		ID:        uuid.New().String(),
		Language:  language,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("event dropped for slow subscriber", zap.String("subscriber", sub.id), zap.String("event", name))
		}
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, subscriberBuf),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", zap.String("subscriber", sub.id))

	done := make(chan struct{})
	go h.writeLoop(sub, done)

	// Subscribers only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	close(done)
	conn.Close()
	h.logger.Debug("subscriber disconnected", zap.String("subscriber", sub.id))
}

func (h *hub) writeLoop(sub *subscriber, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("write to subscriber failed", zap.String("subscriber", sub.id), zap.Error(err))
				sub.conn.Close()
				return
			}
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		_ = sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		sub.conn.Close()
	}
}
