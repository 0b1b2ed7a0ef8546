package handler

import (
	"context"

	"wallet-psbt/internal/handler/response"
	"wallet-psbt/internal/model"
	"wallet-psbt/internal/service"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// NodeSource 节点只读查询，由 service.Pipeline 实现
type NodeSource interface {
	ChainStatus(ctx context.Context) (model.ChainStatus, error)
	ListUnspent(ctx context.Context) ([]model.UTXO, error)
	Balances(ctx context.Context) (model.Balances, error)
}

// HealthReporter 返回最近一次节点健康检查结果
type HealthReporter interface {
	Snapshot() service.HealthSnapshot
}

type NodeHandler struct {
	node   NodeSource
	health HealthReporter
}

// NewNodeHandler health 可以为 nil，此时 /health 只报告进程存活
func NewNodeHandler(node NodeSource, health HealthReporter) *NodeHandler {
	return &NodeHandler{node: node, health: health}
}

// HealthCheck 进程存活与节点连通性
func (h *NodeHandler) HealthCheck(c *gin.Context) {
	data := gin.H{
		"status":  "UP",
		"version": Version,
		"service": "wallet-server",
	}
	if h.health != nil {
		data["node"] = h.health.Snapshot()
	}
	response.Success(c, data)
}

// Status 实时查询节点，不使用缓存的健康检查结果
func (h *NodeHandler) Status(c *gin.Context) {
	status, err := h.node.ChainStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Utxos 钱包可花费输出，附带合计
func (h *NodeHandler) Utxos(c *gin.Context) {
	utxos, err := h.node.ListUnspent(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewUtxoList(utxos))
}

func (h *NodeHandler) Balance(c *gin.Context) {
	b, err := h.node.Balances(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewBalance(b))
}

func Ping(c *gin.Context) {
	response.Success(c, gin.H{"pong": true})
}
