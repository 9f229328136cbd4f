package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// Publisher 实时推送接口
type Publisher interface {
	EmitOrderUpdate(ctx context.Context, order *Order) error
	EmitDashboardUpdate(ctx context.Context, stats *DashboardStats) error
	// AdminWatching 是否有管理员在线，没有时跳过统计计算
	AdminWatching() bool
}

// OrderEvents 订单变更后的推送：订单更新 + 仪表盘统计
type OrderEvents struct {
	publisher Publisher
	stats     StatsRepo
	log       *log.Helper
}

// NewOrderEvents 创建订单事件推送
func NewOrderEvents(publisher Publisher, stats StatsRepo, logger log.Logger) *OrderEvents {
	return &OrderEvents{
		publisher: publisher,
		stats:     stats,
		log:       log.NewHelper(logger),
	}
}

// Emit 推送失败只记录日志，不影响调用方
func (e *OrderEvents) Emit(ctx context.Context, order *Order) {
	if e == nil || e.publisher == nil || order == nil {
		return
	}
	if err := e.publisher.EmitOrderUpdate(ctx, order); err != nil {
		e.log.Warnf("emit order update failed: order_id=%s, error=%v", order.OrderID, err)
	}
	if !e.publisher.AdminWatching() || e.stats == nil {
		return
	}
	stats, err := e.stats.GetDashboardStats(ctx, timeNow())
	if err != nil {
		e.log.Warnf("load dashboard stats failed: error=%v", err)
		return
	}
	if err := e.publisher.EmitDashboardUpdate(ctx, stats); err != nil {
		e.log.Warnf("emit dashboard update failed: error=%v", err)
	}
}
