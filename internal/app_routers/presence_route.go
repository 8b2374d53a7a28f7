package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/sahilt56/messaging-app/internal/configuration"
)

func PresenceRouters(router *gin.Engine, container *configuration.Container) {
	h := container.PresenceHandler

	userRoute := router.Group("/chat/api/users")
	{
		userRoute.GET("/:userId", h.GetUser)
		userRoute.POST("/:userId/heartbeat", h.Heartbeat)
	}
}
