package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/domain/audit"
	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

const (
	NoticeCaptureBatch = "capture_batch"
	NoticeAutoMod      = "automod"

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sendCapacity = 64
)

// Notice is one JSON frame sent to feed subscribers.
type Notice struct {
	Type    string              `json:"type"`
	Entries []audit.BufferEntry `json:"entries,omitempty"`
	Record  *audit.AuditRecord  `json:"record,omitempty"`
	SentAt  time.Time           `json:"sent_at"`
}

// Hub broadcasts notices to every connected websocket client. Clients that
// cannot keep up are disconnected rather than slowing the publisher.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ ports.NoticeSink = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) PublishBatch(_ context.Context, entries []audit.BufferEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return h.broadcast(Notice{Type: NoticeCaptureBatch, Entries: entries, SentAt: time.Now().UTC()})
}

func (h *Hub) PublishRecord(_ context.Context, record audit.AuditRecord) error {
	return h.broadcast(Notice{Type: NoticeAutoMod, Record: &record, SentAt: time.Now().UTC()})
}

func (h *Hub) broadcast(n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errs.Wrap(err, "marshal notice")
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.remove(c)
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithAttrs(r.Context(), slog.String("component", "infrastructure.feed"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(ctx, "feed upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendCapacity)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logging.Info(ctx, "feed subscriber connected", slog.String("remote_addr", r.RemoteAddr))
	go c.writePump()
	go c.readPump(func() { h.remove(c) })
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *client) readPump(onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
