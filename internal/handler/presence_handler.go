package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/store"
)

// PresenceHandler exposes user lookups, heartbeats and typing over HTTP.
type PresenceHandler interface {
	GetUser(c *gin.Context)
	Heartbeat(c *gin.Context)
	SetTyping(c *gin.Context)
}

type presenceHandler struct {
	presence store.PresenceStore
	logger   *zap.Logger
}

func NewPresenceHandler(presence store.PresenceStore, logger *zap.Logger) PresenceHandler {
	return &presenceHandler{
		presence: presence,
		logger:   logger,
	}
}

func (h *presenceHandler) GetUser(c *gin.Context) {
	user, err := h.presence.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *presenceHandler) Heartbeat(c *gin.Context) {
	if err := h.presence.Heartbeat(c.Request.Context(), c.Param("userId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *presenceHandler) SetTyping(c *gin.Context) {
	var body struct {
		UserID   string `json:"userId" binding:"required"`
		IsTyping *bool  `json:"isTyping" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and isTyping are required"})
		return
	}

	err := h.presence.SetTyping(c.Request.Context(), c.Param("conversationId"), body.UserID, *body.IsTyping)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
