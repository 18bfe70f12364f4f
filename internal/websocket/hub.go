package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"licitacao/internal/event"
	"licitacao/internal/logger"
	"licitacao/internal/middleware"
	"licitacao/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin may connect; the session token gates access.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a single connected WebSocket client
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	userID       uuid.UUID
	role         string
	departmentID *uuid.UUID
}

// Hub fans workflow events out to connected clients. It implements the
// service event publisher and never blocks the publishing request.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan event.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		broadcast:  make(chan event.Event, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log.Named("ws"),
	}
}

// Publish queues evt for delivery. When the queue is full the event is
// dropped and logged.
func (h *Hub) Publish(ctx context.Context, evt event.Event) {
	select {
	case h.broadcast <- evt:
	default:
		logger.FromContext(ctx).Warn("notification dropped, hub queue full",
			zap.String("type", evt.Type),
			zap.String("process_id", evt.ProcessID.String()))
	}
}

// Run starts the core dispatch loop and returns when ctx is canceled.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", zap.String("user_id", client.userID.String()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("client disconnected", zap.String("user_id", client.userID.String()))
			}
			h.mu.Unlock()
		case evt := <-h.broadcast:
			h.dispatch(evt)
		}
	}
}

// add hands c to the dispatch loop. It reports false once the hub stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(evt event.Event) {
	message, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !shouldDeliver(client, evt) {
			continue
		}
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// shouldDeliver lets admins see everything and everyone else only events
// addressed to their department.
func shouldDeliver(c *Client, evt event.Event) bool {
	if c.role == model.RoleAdmin {
		return true
	}
	if c.departmentID == nil {
		return false
	}
	for _, d := range evt.Departments {
		if d == *c.departmentID {
			return true
		}
	}
	return false
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the connection so close frames are noticed.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs upgrades an authenticated request. Browsers cannot set headers on
// the handshake, so the session token travels in the "token" query parameter.
func ServeWs(hub *Hub, c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	tokenString := c.Query("token")
	if tokenString == "" {
		log.Info("websocket rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ParseToken(tokenString)
	if err != nil {
		log.Info("websocket rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	actor, err := claims.Actor()
	if err != nil {
		log.Info("websocket rejected: invalid claims", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, clientBuffer),
		userID:       actor.UserID,
		role:         actor.Role,
		departmentID: actor.DepartmentID,
	}
	if !hub.add(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
