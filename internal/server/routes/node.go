package routes

import (
	"wallet-psbt/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterNodeRoutes(rg *gin.RouterGroup, h *handler.NodeHandler) {
	nodeGroup := rg.Group("/node")
	{
		nodeGroup.GET("/status", h.Status)
		nodeGroup.GET("/utxos", h.Utxos)
		nodeGroup.GET("/balance", h.Balance)
	}
}
