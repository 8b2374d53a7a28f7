package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/sahilt56/messaging-app/internal/configuration"
)

func ConversationRouters(router *gin.Engine, container *configuration.Container) {
	h := container.ConversationHandler
	chat := container.ChatHandler
	presence := container.PresenceHandler

	convRoute := router.Group("/chat/api/conversations")
	{
		convRoute.GET("", h.ListConversations)
		convRoute.GET("/direct", h.FindDirect)
		convRoute.POST("/direct", h.CreateDirect)
		convRoute.POST("/group", h.CreateGroup)

		convRoute.GET("/:conversationId", h.GetConversation)
		convRoute.DELETE("/:conversationId", h.DeleteConversation)
		convRoute.PUT("/:conversationId/summary", h.UpdateSummary)

		convRoute.POST("/:conversationId/participants", h.AddParticipant)
		convRoute.DELETE("/:conversationId/participants/:userId", h.RemoveParticipant)
		convRoute.POST("/:conversationId/leave", h.LeaveGroup)
		convRoute.POST("/:conversationId/transfer-admin", h.TransferAdmin)

		convRoute.GET("/:conversationId/messages", chat.GetMessages)
		convRoute.DELETE("/:conversationId/messages", chat.ClearHistory)
		convRoute.POST("/:conversationId/read", chat.MarkRead)
		convRoute.GET("/:conversationId/unread", chat.UnreadCount)

		convRoute.POST("/:conversationId/typing", presence.SetTyping)
	}
}
