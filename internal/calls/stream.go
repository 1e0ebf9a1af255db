package calls

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

const (
	EventCallStarted = "call.started"
	EventCallUpdated = "call.updated"
	EventCallEnded   = "call.ended"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 16
)

// Event is one call lifecycle change pushed to live feed subscribers.
type Event struct {
	Type    string    `json:"type"`
	Session *Session  `json:"session"`
	At      time.Time `json:"at"`
}

// Hub fans call events out to websocket subscribers. Slow subscribers are
// dropped rather than blocking publishers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*subscriber]struct{}
	upgrader websocket.Upgrader
	logger   *logging.Logger
	closed   bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. checkOrigin may be nil to accept same-origin requests only.
func NewHub(checkOrigin func(r *http.Request) bool, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Publish broadcasts evt to every subscriber. A nil hub is a no-op.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("call stream: marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warn("call stream: dropping slow subscriber")
			h.removeLocked(sub)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.clients {
		h.removeLocked(sub)
	}
}

// ServeHTTP upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("call stream: upgrade failed", "error", err)
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, clientSendSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.clients[sub] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("call stream: subscriber connected", "remote_addr", r.RemoteAddr)

	go h.writeLoop(sub)
	h.readLoop(sub)
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.clients[sub]; !ok {
		return
	}
	delete(h.clients, sub)
	close(sub.send)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Hub) readLoop(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
	}()
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
