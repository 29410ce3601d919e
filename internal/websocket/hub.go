package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatagent-backend/internal/chatui"
	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/monitoring"
)

const writeWait = 10 * time.Second

// inbound is the only frame a browser sends.
type inbound struct {
	Message string `json:"message"`
}

// Hub owns one chat UI session per WebSocket connection. A session's
// transcript lives exactly as long as its connection.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]*client
	replier  chatui.Replier
	upgrader websocket.Upgrader
	origin   string
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

type client struct {
	conn    *websocket.Conn
	session *chatui.Session
	log     *logging.Logger
	writeMu sync.Mutex
}

// NewHub creates a hub. allowedOrigin is accepted in addition to same-origin
// pages.
func NewHub(replier chatui.Replier, allowedOrigin string, metrics *monitoring.Metrics, logger *logging.Logger) *Hub {
	h := &Hub{
		clients: make(map[uuid.UUID]*client),
		replier: replier,
		origin:  allowedOrigin,
		metrics: metrics,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	c.session = chatui.NewSession(h.replier, c.send, h.logger)
	c.log = h.logger.ForSession(c.session.ID.String())
	h.register(c)

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("Ignoring malformed frame")
			continue
		}

		h.accept(c, msg.Message)
	}
}

// accept claims the session in frame order; only the reply runs off the
// read loop.
func (h *Hub) accept(c *client, text string) {
	text, err := c.session.Start(text)

	result := "sent"
	switch {
	case errors.Is(err, chatui.ErrEmptyMessage):
		result = "empty"
	case errors.Is(err, chatui.ErrBusy):
		result = "busy"
	}
	if h.metrics != nil {
		h.metrics.SessionSends.WithLabelValues(result).Inc()
	}
	if err != nil {
		return
	}

	// The request outlives the connection if the page goes away mid-flight.
	go c.session.Complete(context.Background(), text)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.session.ID] = c
	if h.metrics != nil {
		h.metrics.SessionsActive.Inc()
	}

	c.log.Info("Chat session opened",
		zap.Int("active", len(h.clients)),
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	if _, ok := h.clients[c.session.ID]; !ok {
		return
	}
	delete(h.clients, c.session.ID)
	if h.metrics != nil {
		h.metrics.SessionsActive.Dec()
	}

	c.log.Info("Chat session closed",
		zap.Int("messages", len(c.session.Transcript())),
	)
}

// ActiveSessions returns the number of connected sessions.
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every connection. http.Server.Shutdown does not track hijacked
// connections, so the server calls this on the way out.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.origin != "" && origin == h.origin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// send serializes writes; gorilla connections allow one concurrent writer.
func (c *client) send(e chatui.Event) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(e)
}
