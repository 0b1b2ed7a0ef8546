package routes

import (
	"wallet-psbt/internal/handler"

	"github.com/gin-gonic/gin"
)

// RegisterPsbtRoutes 注册 PSBT 生命周期路由
func RegisterPsbtRoutes(rg *gin.RouterGroup, h *handler.PsbtHandler) {
	psbtGroup := rg.Group("/psbt")
	{
		psbtGroup.POST("", h.Create)
		psbtGroup.GET("", h.List)
		psbtGroup.GET("/:id", h.Get)
		psbtGroup.POST("/:id/sign", h.Sign)
		psbtGroup.POST("/:id/broadcast", h.Broadcast)
		psbtGroup.DELETE("/:id", h.Delete)
	}
}
