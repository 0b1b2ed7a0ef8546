package monitor

import (
	"strconv"
	"time"

	"wallet-psbt/pkg/errno"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	TransitionsTotal     *prometheus.CounterVec
	NodeRPCDuration      *prometheus.HistogramVec
	BroadcastAmountTotal prometheus.Counter
	BlockHeight          prometheus.Gauge
}

// NewBusinessMetrics 在 reg 上注册 PSBT 流水线指标
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	f := promauto.With(reg)
	return &BusinessMetrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_psbt_transitions_total",
			Help: "PSBT pipeline operations by outcome; result is ok or the error code",
		}, []string{"op", "result"}),
		NodeRPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_node_rpc_duration_seconds",
			Help:    "Latency of node JSON-RPC calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		BroadcastAmountTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "wallet_psbt_broadcast_amount_base_units_total",
			Help: "Sum of recipient amounts of broadcast transactions, in base units",
		}),
		BlockHeight: f.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_node_block_height",
			Help: "Last block height reported by the node",
		}),
	}
}

// ObserveTransition 记录一次流水线操作结果
func (m *BusinessMetrics) ObserveTransition(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = strconv.Itoa(errno.KindOf(err).Code)
	}
	m.TransitionsTotal.WithLabelValues(op, result).Inc()
}

// ObserveRPC 记录节点调用耗时
func (m *BusinessMetrics) ObserveRPC(method string, elapsed time.Duration, _ error) {
	if m == nil {
		return
	}
	m.NodeRPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *BusinessMetrics) AddBroadcastAmount(baseUnits int64) {
	if m == nil || baseUnits <= 0 {
		return
	}
	m.BroadcastAmountTotal.Add(float64(baseUnits))
}

func (m *BusinessMetrics) SetBlockHeight(height int64) {
	if m == nil {
		return
	}
	m.BlockHeight.Set(float64(height))
}
