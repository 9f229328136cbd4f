package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// timeNow 便于测试替换
var timeNow = time.Now

// OrderStatusCount 按履约状态统计
type OrderStatusCount struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// GameOrderCount 按游戏统计订单数
type GameOrderCount struct {
	GameName string `json:"gameName"`
	Count    int64  `json:"count"`
}

// DailyOrderCount 按天统计订单数
type DailyOrderCount struct {
	Date   string `json:"date"`
	Orders int64  `json:"orders"`
}

// DashboardStats 仪表盘统计对象
type DashboardStats struct {
	DailyOrders      int64              `json:"dailyOrders"`
	TotalRevenue     float64            `json:"totalRevenue"`     // 已支付订单金额合计
	DailyRevenue     float64            `json:"dailyRevenue"`     // 今日已支付订单金额合计
	SuccessfulTopUps int64              `json:"successfulTopUps"` // 已到账订单数
	OrderStatus      OrderStatusCount   `json:"orderStatus"`
	OrdersByGame     []*GameOrderCount  `json:"ordersByGame"` // 前 5 个游戏
	RecentOrders     []*Order           `json:"recentOrders"` // 最近 5 笔
	ChartData        []*DailyOrderCount `json:"chartData"`    // 最近 7 天
}

// StatsRepo 统计数据层接口（定义在 biz 层）
type StatsRepo interface {
	GetDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error)
}

// StatsUseCase 统计业务逻辑
type StatsUseCase struct {
	repo StatsRepo
	log  *log.Helper
}

// NewStatsUseCase 创建统计 UseCase
func NewStatsUseCase(repo StatsRepo, logger log.Logger) *StatsUseCase {
	return &StatsUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// GetDashboardStats 获取仪表盘统计
func (uc *StatsUseCase) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats, err := uc.repo.GetDashboardStats(ctx, timeNow())
	if err != nil {
		uc.log.Errorf("GetDashboardStats failed: %v", err)
		return nil, err
	}
	return stats, nil
}
