package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/service"
)

// Chatter answers questions about a minutes document.
type Chatter interface {
	Start(ctx context.Context, caller domain.UserID, minutesID uint) (*service.StartResult, error)
	Send(ctx context.Context, caller domain.UserID, sessionID uint, text string) (*service.MessageResult, error)
	References(ctx context.Context, caller domain.UserID, messageID uint) ([]service.ReferenceItem, error)
}

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	chat Chatter
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat Chatter) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// StartRequest is the body of POST /chat/start.
type StartRequest struct {
	MinutesID uint `json:"minutes_id" binding:"required"`
}

// SendRequest is the body of POST /chat/send.
type SendRequest struct {
	SessionID uint   `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// Start handles POST /api/v1/chat/start.
func (h *ChatHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "handler.ChatStart", "minutes_id is required")
		return
	}
	res, err := h.chat.Start(c.Request.Context(), caller(c), req.MinutesID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Send handles POST /api/v1/chat/send.
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "handler.ChatSend", "session_id and message are required")
		return
	}
	res, err := h.chat.Send(c.Request.Context(), caller(c), req.SessionID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// References handles GET /api/v1/chat/messages/:id/references.
func (h *ChatHandler) References(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	refs, err := h.chat.References(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"references": refs})
}
