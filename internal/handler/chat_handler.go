package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/model"
	"github.com/sahilt56/messaging-app/internal/store"
)

// ChatHandler exposes the message and reaction surface over HTTP.
type ChatHandler interface {
	GetMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	UnreadCount(c *gin.Context)
	ClearHistory(c *gin.Context)
	GetReactions(c *gin.Context)
	ToggleReaction(c *gin.Context)
}

type chatHandler struct {
	messages  store.MessageStore
	reactions store.ReactionStore
	logger    *zap.Logger
}

func NewChatHandler(messages store.MessageStore, reactions store.ReactionStore, logger *zap.Logger) ChatHandler {
	return &chatHandler{
		messages:  messages,
		reactions: reactions,
		logger:    logger,
	}
}

func (h *chatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversationId")

	msgs, err := h.messages.FetchMessages(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
	})
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	var msg model.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message body"})
		return
	}

	created, err := h.messages.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": created,
	})
}

func (h *chatHandler) DeleteMessage(c *gin.Context) {
	if err := h.messages.DeleteMessage(c.Request.Context(), c.Param("messageId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *chatHandler) MarkRead(c *gin.Context) {
	conversationID := c.Param("conversationId")

	var body struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := h.messages.MarkConversationRead(c.Request.Context(), conversationID, body.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *chatHandler) UnreadCount(c *gin.Context) {
	conversationID := c.Param("conversationId")
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	count, err := h.messages.UnreadCount(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": count,
	})
}

func (h *chatHandler) ClearHistory(c *gin.Context) {
	if err := h.messages.ClearHistory(c.Request.Context(), c.Param("conversationId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *chatHandler) GetReactions(c *gin.Context) {
	rows, err := h.reactions.FetchReactions(c.Request.Context(), c.Param("messageId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reactions": rows,
	})
}

func (h *chatHandler) ToggleReaction(c *gin.Context) {
	messageID := c.Param("messageId")

	var body struct {
		UserID string `json:"userId" binding:"required"`
		Emoji  string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and emoji are required"})
		return
	}

	result, err := h.reactions.ToggleReaction(c.Request.Context(), messageID, body.UserID, body.Emoji)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondError maps store errors onto HTTP statuses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrAdminOnly), errors.Is(err, store.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrAdminCannotLeave):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseTime accepts RFC 3339 with a zero-value fallback for absent input.
func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
