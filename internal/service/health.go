package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-psbt/internal/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NodeHealthService gRPC health 中代表节点连通性的服务名
const NodeHealthService = "wallet.psbt.Node"

// ChainStatusSource 提供链状态，Pipeline 实现
type ChainStatusSource interface {
	ChainStatus(ctx context.Context) (model.ChainStatus, error)
}

// ServingStatusSetter 由 grpc health.Server 实现
type ServingStatusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// HealthSnapshot 最近一次节点检查结果
type HealthSnapshot struct {
	Healthy   bool              `json:"healthy"`
	Chain     model.ChainStatus `json:"chain"`
	Error     string            `json:"error,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

// HealthWatcher 周期性调用 getblockchaininfo，切换 gRPC health 状态
type HealthWatcher struct {
	cron     *cron.Cron
	source   ChainStatusSource
	setter   ServingStatusSetter
	interval time.Duration
	log      *zap.Logger

	mu   sync.RWMutex
	last HealthSnapshot
}

func NewHealthWatcher(source ChainStatusSource, setter ServingStatusSetter, interval time.Duration, log *zap.Logger) *HealthWatcher {
	return &HealthWatcher{
		// 同一时刻只允许一次检查，节点慢时跳过后续触发
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		source:   source,
		setter:   setter,
		interval: interval,
		log:      log.Named("health"),
	}
}

// Start 立即检查一次，然后按 interval 调度；interval <= 0 时只检查一次
func (w *HealthWatcher) Start(ctx context.Context) error {
	w.Check(ctx)
	if w.interval <= 0 {
		return nil
	}
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), func() { w.Check(ctx) }); err != nil {
		return fmt.Errorf("schedule node health check: %w", err)
	}
	w.cron.Start()
	w.log.Info("node health watcher started", zap.Duration("interval", w.interval))
	return nil
}

// Stop 停止调度并等待正在执行的检查结束
func (w *HealthWatcher) Stop() {
	<-w.cron.Stop().Done()
}

// Check 执行一次检查并更新 serving 状态
func (w *HealthWatcher) Check(ctx context.Context) HealthSnapshot {
	status, err := w.source.ChainStatus(ctx)
	snap := HealthSnapshot{Healthy: err == nil, Chain: status, CheckedAt: time.Now()}

	serving := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		snap.Error = err.Error()
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}

	w.mu.Lock()
	changed := w.last.CheckedAt.IsZero() || w.last.Healthy != snap.Healthy
	w.last = snap
	w.mu.Unlock()

	w.setter.SetServingStatus(NodeHealthService, serving)
	if changed {
		if err != nil {
			w.log.Warn("node unreachable", zap.Error(err))
		} else {
			w.log.Info("node reachable", zap.String("chain", status.Chain), zap.Int64("height", status.BlockHeight))
		}
	}
	return snap
}

// Snapshot 返回最近一次检查结果
func (w *HealthWatcher) Snapshot() HealthSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}
