package server

import (
	"wallet-psbt/internal/handler"
	"wallet-psbt/internal/server/routes"
	"wallet-psbt/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps HTTP 路由依赖
type RouterDeps struct {
	Psbt     *handler.PsbtHandler
	Node     *handler.NodeHandler
	Metrics  *monitor.HTTPMetrics // 可选
	Gatherer prometheus.Gatherer  // 可选，为 nil 时不暴露 /metrics
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(d RouterDeps) *gin.Engine {
	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}

	// 3. 注册基础路由
	r.GET("/health", d.Node.HealthCheck)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(monitor.Handler(d.Gatherer)))
	}

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", handler.Ping)
		routes.RegisterPsbtRoutes(api, d.Psbt)
		routes.RegisterNodeRoutes(api, d.Node)
	}

	return r
}
