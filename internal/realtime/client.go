package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/response"
)

const (
	writeWait    = 10 * time.Second
	maxReadBytes = 4096
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single authenticated WebSocket connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	User   models.UserPublic
	rooms  []string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, user *models.User, buffer int, logger *zap.Logger) *Client {
	rooms := []string{UserRoom(user.ID)}
	if user.IsAdmin() {
		rooms = append(rooms, AdminRoom)
	}
	return &Client{
		ID:     uuid.New().String(),
		UserID: user.ID,
		User:   user.ToPublic(),
		rooms:  rooms,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// enqueue never blocks; a full buffer drops the message.
func (c *Client) enqueue(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// ServeOptions configures the WebSocket endpoint.
type ServeOptions struct {
	AllowedOrigins string
	SendBuffer     int
}

// ServeWs authenticates the handshake, upgrades the connection and runs the client loop.
func ServeWs(hub *Hub, auth *Authenticator, opts ServeOptions, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request)
		if err != nil {
			logger.Info("websocket authentication rejected", zap.String("reason", err.Error()), zap.String("client_ip", c.ClientIP()))
			response.Error(c, apperr.Unauthorized(AuthErrorMessage))
			return
		}
		if !hub.Running() {
			response.ServiceUnavailable(c, "realtime unavailable")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, conn, user, opts.SendBuffer, logger)
		if !hub.Register(client) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
		go client.writePump()
		client.readPump()
	}
}

// readPump only keeps the connection alive; clients receive, they do not publish.
func (c *Client) readPump() {
	var reason error
	defer func() {
		c.hub.Unregister(c, reason)
	}()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			reason = err
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "ping":
			c.enqueue(WSMessage{Event: "pong"})
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
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
