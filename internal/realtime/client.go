package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/auth"
	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/pkg/response"
)

const writeWait = 10 * time.Second

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenValidator validates the token passed in the query string.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// MeetingFinder looks up a meeting to authorize a subscription.
type MeetingFinder interface {
	Find(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Client is a single WebSocket subscription to one meeting.
type Client struct {
	ID        string
	MeetingID uuid.UUID
	UserID    uuid.UUID
	Role      models.Role
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
}

// NewClient creates a client bound to hub. conn may be nil in tests.
func NewClient(hub *Hub, conn *websocket.Conn, meetingID, userID uuid.UUID, role models.Role) *Client {
	return &Client{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		UserID:    userID,
		Role:      role,
		hub:       hub,
		conn:      conn,
		send:      make(chan WSMessage, 64),
	}
}

// Messages exposes the outbound queue.
func (c *Client) Messages() <-chan WSMessage { return c.send }

// ServeWs handles GET /ws?meeting_id=&token=. Students may only watch meetings they are allocated to.
func ServeWs(hub *Hub, tokens TokenValidator, meetings MeetingFinder, allowedOrigins []string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return func(c *gin.Context) {
		meetingID, err := uuid.Parse(c.Query("meeting_id"))
		if err != nil {
			response.BadRequest(c, "meeting_id required")
			return
		}
		claims, err := tokens.Validate(c.Query("token"))
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		role, _ := models.ParseRole(claims.Role)

		m, err := meetings.Find(c.Request.Context(), meetingID)
		if err != nil {
			logger.Error("find meeting for ws failed", zap.Error(err))
			response.Internal(c, "internal error")
			return
		}
		if m == nil || (role == models.RoleStudent && !m.HasParticipant(claims.UserID)) {
			response.NotFound(c, "meeting not found")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := NewClient(hub, conn, meetingID, claims.UserID, role)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// readPump only services control frames; the feed is server to client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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
