package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TopupMetrics 充值服务指标
type TopupMetrics struct {
	// 网关通知相关指标
	NotificationTotal       *prometheus.CounterVec   // 通知总数（按来源、结果）
	ReconcileDuration       *prometheus.HistogramVec // 对账耗时（按来源）
	DecryptFailedTotal      *prometheus.CounterVec   // 解密失败总数（按来源）
	TransitionConflictTotal prometheus.Counter       // 终态冲突总数

	// 订单相关指标
	OrderCreatedTotal *prometheus.CounterVec // 订单创建总数（按来源：checkout/synthesized）
	OrderExpiredTotal prometheus.Counter     // 超时关闭订单总数

	// 网关确认回调相关指标
	ConfirmTotal    *prometheus.CounterVec // 确认回调总数（按结果）
	ConfirmDuration prometheus.Histogram   // 确认回调耗时

	// 实时推送相关指标
	RealtimeConnections prometheus.Gauge       // 当前连接数
	RealtimePublished   *prometheus.CounterVec // 推送消息总数（按事件）
	RealtimeDropped     prometheus.Counter     // 因缓冲区满丢弃的消息数

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewTopupMetrics 创建充值服务指标
func NewTopupMetrics() *TopupMetrics {
	return &TopupMetrics{
		NotificationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_notification_total",
				Help: "Total number of gateway notifications",
			},
			[]string{"source", "outcome"}, // source: webhook/confirm/legacy
		),
		ReconcileDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "topup_reconcile_duration_seconds",
				Help:    "Duration of notification reconciliation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		DecryptFailedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_decrypt_failed_total",
				Help: "Total number of payloads that failed decryption",
			},
			[]string{"source"},
		),
		TransitionConflictTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "topup_transition_conflict_total",
				Help: "Notifications rejected because they conflict with a terminal order state",
			},
		),

		OrderCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_order_created_total",
				Help: "Total number of orders created",
			},
			[]string{"origin"},
		),
		OrderExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "topup_order_expired_total",
				Help: "Total number of stale pending orders expired by the sweeper",
			},
		),

		ConfirmTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_gateway_confirm_total",
				Help: "Total number of outbound gateway confirmations",
			},
			[]string{"result"}, // result: success/failed
		),
		ConfirmDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "topup_gateway_confirm_duration_seconds",
				Help:    "Duration of outbound gateway confirmations",
				Buckets: prometheus.DefBuckets,
			},
		),

		RealtimeConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "topup_realtime_connections",
				Help: "Number of connected realtime clients",
			},
		),
		RealtimePublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_realtime_published_total",
				Help: "Total number of realtime messages delivered to client queues",
			},
			[]string{"event"},
		),
		RealtimeDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "topup_realtime_dropped_total",
				Help: "Realtime messages dropped because a client queue was full",
			},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topup_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "topup_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}, // 毫秒级
			},
		),
	}
}

// 全局指标实例（promauto 注册到默认 registry，只能创建一次）
var (
	defaultMetrics *TopupMetrics
	initOnce       sync.Once
)

// InitMetrics 初始化全局指标
func InitMetrics() {
	initOnce.Do(func() {
		defaultMetrics = NewTopupMetrics()
	})
}

// GetMetrics 获取全局指标实例
func GetMetrics() *TopupMetrics {
	InitMetrics()
	return defaultMetrics
}
