package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/store"
)

// ConversationHandler exposes conversation metadata and membership over HTTP.
type ConversationHandler interface {
	GetConversation(c *gin.Context)
	ListConversations(c *gin.Context)
	FindDirect(c *gin.Context)
	CreateDirect(c *gin.Context)
	CreateGroup(c *gin.Context)
	UpdateSummary(c *gin.Context)
	AddParticipant(c *gin.Context)
	RemoveParticipant(c *gin.Context)
	LeaveGroup(c *gin.Context)
	TransferAdmin(c *gin.Context)
	DeleteConversation(c *gin.Context)
}

type conversationHandler struct {
	conversations store.ConversationStore
	logger        *zap.Logger
}

func NewConversationHandler(conversations store.ConversationStore, logger *zap.Logger) ConversationHandler {
	return &conversationHandler{
		conversations: conversations,
		logger:        logger,
	}
}

func (h *conversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.conversations.GetConversation(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *conversationHandler) ListConversations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	convs, err := h.conversations.FetchConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
	})
}

func (h *conversationHandler) FindDirect(c *gin.Context) {
	userA := c.Query("userA")
	userB := c.Query("userB")
	if userA == "" || userB == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userA and userB are required"})
		return
	}

	conv, err := h.conversations.FindDirect(c.Request.Context(), userA, userB)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no direct conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *conversationHandler) CreateDirect(c *gin.Context) {
	var body struct {
		UserA string `json:"userA" binding:"required"`
		UserB string `json:"userB" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userA and userB are required"})
		return
	}

	conv, err := h.conversations.CreateDirect(c.Request.Context(), body.UserA, body.UserB)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *conversationHandler) CreateGroup(c *gin.Context) {
	var body struct {
		Name         string   `json:"name" binding:"required"`
		Participants []string `json:"participants" binding:"required"`
		AdminID      string   `json:"adminId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, participants and adminId are required"})
		return
	}

	conv, err := h.conversations.CreateGroup(c.Request.Context(), body.Name, body.Participants, body.AdminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *conversationHandler) UpdateSummary(c *gin.Context) {
	var body struct {
		LastMessage string `json:"lastMessage"`
		At          string `json:"at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid summary body"})
		return
	}

	at := parseTime(body.At)
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := h.conversations.UpdateSummary(c.Request.Context(), c.Param("conversationId"), body.LastMessage, at)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *conversationHandler) AddParticipant(c *gin.Context) {
	var body struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	err := h.conversations.AddParticipant(c.Request.Context(), c.Param("conversationId"), body.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *conversationHandler) RemoveParticipant(c *gin.Context) {
	err := h.conversations.RemoveParticipant(c.Request.Context(), c.Param("conversationId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *conversationHandler) LeaveGroup(c *gin.Context) {
	var body struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	err := h.conversations.LeaveGroup(c.Request.Context(), c.Param("conversationId"), body.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *conversationHandler) TransferAdmin(c *gin.Context) {
	var body struct {
		ByUserID   string `json:"byUserId" binding:"required"`
		NewAdminID string `json:"newAdminId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "byUserId and newAdminId are required"})
		return
	}

	err := h.conversations.TransferAdmin(c.Request.Context(), c.Param("conversationId"), body.ByUserID, body.NewAdminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *conversationHandler) DeleteConversation(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	err := h.conversations.DeleteConversation(c.Request.Context(), c.Param("conversationId"), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
