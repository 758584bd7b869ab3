// Package ws exposes the live channel. Each connection is one
// authenticated principal; it joins session rooms on the hub and
// receives the event stream for them. The hub never buffers events for
// absent members: after a transport drop the client re-joins and
// catches up through message history.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/api/middleware"
	domainerrors "github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/domain/models"
	"github.com/tradepost/deal-service/internal/hub"
	"github.com/tradepost/deal-service/internal/services/chat"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait bounds the silence tolerated before the read side gives up.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize bounds an inbound client frame.
	maxFrameSize = 8192
)

// Client frame actions.
const (
	ActionJoin       = "join"
	ActionLeave      = "leave"
	ActionSend       = "send"
	ActionTyping     = "typing"
	ActionStopTyping = "stop_typing"
	ActionMarkRead   = "mark_read"
)

// ClientFrame is a single inbound frame.
type ClientFrame struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	Body      string `json:"body,omitempty"`
}

// ServerFrame is a single outbound frame: either an event or an error.
type ServerFrame struct {
	Type    string        `json:"type"`
	Event   *models.Event `json:"event,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Handler upgrades authenticated requests to live connections.
type Handler struct {
	hub        *hub.Hub
	sessions   chat.Manager
	presence   *hub.Presence
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// Config holds the configuration for the websocket handler.
type Config struct {
	Hub        *hub.Hub
	Sessions   chat.Manager
	Presence   *hub.Presence
	SendBuffer int
}

// NewHandler creates a new websocket handler.
func NewHandler(cfg *Config) *Handler {
	buffer := cfg.SendBuffer
	if buffer == 0 {
		buffer = 256
	}
	return &Handler{
		hub:        cfg.Hub,
		sessions:   cfg.Sessions,
		presence:   cfg.Presence,
		sendBuffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.With().Str("component", "ws").Logger(),
	}
}

// ServeWS handles GET /ws. Authentication runs in middleware before
// the upgrade.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := middleware.GetPrincipalID(c)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "missing principal",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &connection{
		ws:      conn,
		send:    make(chan *ServerFrame, h.sendBuffer),
		userID:  userID,
		joined:  make(map[string]bool),
		handler: h,
	}

	h.logger.Debug().Str("user_id", userID).Msg("websocket connected")

	go client.writer()
	client.reader()
}

// connection is one principal's live channel.
type connection struct {
	ws      *websocket.Conn
	send    chan *ServerFrame
	userID  string
	handler *Handler

	mu     sync.Mutex
	joined map[string]bool
	closed bool
}

// Send implements hub.Subscriber. It never blocks: a full buffer drops
// the event and the client recovers through history.
func (c *connection) Send(event *models.Event) bool {
	return c.enqueue(&ServerFrame{Type: "event", Event: event})
}

// sendError queues an error frame, best-effort.
func (c *connection) sendError(err error) {
	frame := &ServerFrame{Type: "error", Code: domainerrors.ErrCodeInternal, Message: "internal error"}
	if domainErr, ok := domainerrors.GetDomainError(err); ok {
		frame.Code = domainErr.Code
		frame.Message = domainErr.Message
	}
	c.enqueue(frame)
}

// enqueue serializes channel sends with teardown's close under the
// connection lock. A hub fan-out that snapshotted this subscriber
// before its rooms were left may still call Send after teardown
// started; once closed is set the frame is dropped instead of hitting
// the closed channel.
func (c *connection) enqueue(frame *ServerFrame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// reader pumps inbound frames until the connection drops, then leaves
// every joined room.
func (c *connection) reader() {
	defer c.teardown()

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if c.handler.presence != nil {
			c.handler.presence.Refresh(c.userID)
		}
		return nil
	})

	for {
		var frame ClientFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.handler.logger.Debug().Err(err).Str("user_id", c.userID).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.dispatch(&frame)
	}
}

// dispatch applies one client frame.
func (c *connection) dispatch(frame *ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch frame.Action {
	case ActionJoin:
		// Participation is checked against the session manager; the
		// hub trusts its callers.
		session, err := c.handler.sessions.Get(ctx, frame.SessionID, c.userID)
		if err != nil {
			c.sendError(err)
			return
		}
		c.handler.hub.Join(frame.SessionID, c.userID, session.ProductID, c)
		c.mu.Lock()
		c.joined[frame.SessionID] = true
		c.mu.Unlock()

	case ActionLeave:
		c.handler.hub.Leave(frame.SessionID, c.userID)
		c.mu.Lock()
		delete(c.joined, frame.SessionID)
		c.mu.Unlock()

	case ActionSend:
		if _, err := c.handler.sessions.PostMessage(ctx, frame.SessionID, c.userID, frame.Body); err != nil {
			c.sendError(err)
		}

	case ActionTyping:
		if c.handler.hub.IsJoined(frame.SessionID, c.userID) {
			c.handler.hub.PublishTyping(frame.SessionID, c.userID)
		}

	case ActionStopTyping:
		if c.handler.hub.IsJoined(frame.SessionID, c.userID) {
			c.handler.hub.PublishStopTyping(frame.SessionID, c.userID)
		}

	case ActionMarkRead:
		if err := c.handler.sessions.MarkRead(ctx, frame.SessionID, c.userID); err != nil {
			c.sendError(err)
		}

	default:
		c.sendError(domainerrors.NewValidationError("unknown action", frame.Action))
	}
}

// writer pumps outbound frames and keepalive pings.
func (c *connection) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown leaves every joined room and closes the connection. The
// closed flag is flipped before the channel closes so an in-flight
// fan-out drops its frame instead of panicking on the send.
func (c *connection) teardown() {
	c.mu.Lock()
	c.closed = true
	sessionIDs := make([]string, 0, len(c.joined))
	for sessionID := range c.joined {
		sessionIDs = append(sessionIDs, sessionID)
	}
	c.joined = make(map[string]bool)
	c.mu.Unlock()

	for _, sessionID := range sessionIDs {
		c.handler.hub.Leave(sessionID, c.userID)
	}

	close(c.send)
	c.handler.logger.Debug().Str("user_id", c.userID).Msg("websocket disconnected")
}
