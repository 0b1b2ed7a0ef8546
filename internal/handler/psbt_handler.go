package handler

import (
	"context"

	"wallet-psbt/internal/handler/request"
	"wallet-psbt/internal/handler/response"
	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/errno"
	"wallet-psbt/pkg/validator"

	"github.com/gin-gonic/gin"
)

// PsbtService PSBT 生命周期操作，由 service.Pipeline 实现
type PsbtService interface {
	CreateDraft(ctx context.Context, req model.CreateRequest) (model.Record, error)
	Sign(ctx context.Context, id string) (model.Record, error)
	Broadcast(ctx context.Context, id string) (model.Record, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.Record, error)
	List(ctx context.Context) []model.Record
}

type PsbtHandler struct {
	svc PsbtService
}

func NewPsbtHandler(svc PsbtService) *PsbtHandler {
	return &PsbtHandler{svc: svc}
}

// Create 创建草稿
func (h *PsbtHandler) Create(c *gin.Context) {
	// 1. 绑定参数
	var req request.CreatePsbtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.New(errno.ErrBind).WithDetail(validator.GetErrorMsg(err)))
		return
	}

	// 2. 解析金额
	in, err := req.ToModel()
	if err != nil {
		response.Error(c, err)
		return
	}

	// 3. 调用 Service
	rec, err := h.svc.CreateDraft(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewPsbtRecord(rec))
}

// List 按创建时间倒序返回全部记录
func (h *PsbtHandler) List(c *gin.Context) {
	recs := h.svc.List(c.Request.Context())
	response.Success(c, gin.H{
		"items": response.NewPsbtList(recs),
		"total": len(recs),
	})
}

func (h *PsbtHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewPsbtRecord(rec))
}

// Sign draft -> signed
func (h *PsbtHandler) Sign(c *gin.Context) {
	rec, err := h.svc.Sign(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewPsbtRecord(rec))
}

// Broadcast signed -> broadcast，返回的记录带最终 txid。
// 客户端断开不会中断已发出的广播，超时由每次节点调用自行控制。
func (h *PsbtHandler) Broadcast(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	rec, err := h.svc.Broadcast(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewPsbtRecord(rec))
}

// Delete 只删除本地记录，不影响已广播的交易
func (h *PsbtHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Remove(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "removed": true})
}
