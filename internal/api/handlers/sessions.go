// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradepost/deal-service/internal/api/dto"
	"github.com/tradepost/deal-service/internal/api/middleware"
	"github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/services/chat"
)

// SessionsHandler handles conversation session endpoints.
type SessionsHandler struct {
	sessions chat.Manager
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(sessions chat.Manager) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// CreateOrGetSession handles POST /sessions. Returns 201 when this
// request created the session, 200 when it already existed.
func (h *SessionsHandler) CreateOrGetSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	session, created, err := h.sessions.CreateOrGet(c.Request.Context(), middleware.GetPrincipalID(c), req.CounterpartyID, req.ProductID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.SessionResponse{Session: session, Created: created})
}

// GetSession handles GET /sessions/:sessionId.
func (h *SessionsHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("sessionId"), middleware.GetPrincipalID(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SessionResponse{Session: session})
}

// ListMySessions handles GET /sessions.
func (h *SessionsHandler) ListMySessions(c *gin.Context) {
	sessions, err := h.sessions.List(c.Request.Context(), middleware.GetPrincipalID(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SessionListResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
}

// GetMessagesRequest represents the query parameters for history
// retrieval.
type GetMessagesRequest struct {
	Limit int64 `form:"limit" binding:"omitempty,min=1,max=500"`
}

// GetMessages handles GET /sessions/:sessionId/messages. History stays
// retrievable after the retention window.
func (h *SessionsHandler) GetMessages(c *gin.Context) {
	var req GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	messages, err := h.sessions.Messages(c.Request.Context(), c.Param("sessionId"), middleware.GetPrincipalID(c), req.Limit)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageListResponse{
		Messages: messages,
		Total:    len(messages),
	})
}

// PostMessage handles POST /sessions/:sessionId/messages, the HTTP
// fallback for clients without a live channel.
func (h *SessionsHandler) PostMessage(c *gin.Context) {
	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	msg, err := h.sessions.PostMessage(c.Request.Context(), c.Param("sessionId"), middleware.GetPrincipalID(c), req.Body)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.MessageResponse{Message: msg})
}

// MarkRead handles POST /sessions/:sessionId/read.
func (h *SessionsHandler) MarkRead(c *gin.Context) {
	if err := h.sessions.MarkRead(c.Request.Context(), c.Param("sessionId"), middleware.GetPrincipalID(c)); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmationResponse{Status: "read"})
}
