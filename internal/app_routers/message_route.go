package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/sahilt56/messaging-app/internal/configuration"
)

func MessageRouters(router *gin.Engine, container *configuration.Container) {
	h := container.ChatHandler

	msgRoute := router.Group("/chat/api/messages")
	{
		msgRoute.POST("", h.SendMessage)
		msgRoute.DELETE("/:messageId", h.DeleteMessage)
		msgRoute.GET("/:messageId/reactions", h.GetReactions)
		msgRoute.POST("/:messageId/reactions/toggle", h.ToggleReaction)
	}
}
