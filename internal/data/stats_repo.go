package data

import (
	"context"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/constants"
	"topup-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

const (
	statsTopGames    = 5
	statsRecentLimit = 5
	statsChartDays   = 7
)

// statsRepo 仪表盘统计数据访问
type statsRepo struct {
	data *Data
	log  *log.Helper
}

// NewStatsRepo 创建统计 repo（返回 biz.StatsRepo 接口）
func NewStatsRepo(data *Data, logger log.Logger) biz.StatsRepo {
	return &statsRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

type fulfillmentCount struct {
	FulfillmentStatus string
	Count             int64
}

type dayCount struct {
	Day   string
	Count int64
}

// GetDashboardStats 汇总仪表盘统计
func (r *statsRepo) GetDashboardStats(ctx context.Context, now time.Time) (*biz.DashboardStats, error) {
	db := r.data.db.WithContext(ctx)
	today := startOfDay(now)
	stats := &biz.DashboardStats{}

	// 今日订单数
	if err := db.Model(&model.Order{}).
		Where("created_at >= ?", today).
		Count(&stats.DailyOrders).Error; err != nil {
		return nil, storageError(err, "count daily orders failed")
	}

	// 收入（已支付订单）
	var totalRevenue, dailyRevenue float64
	if err := db.Model(&model.Order{}).
		Select("COALESCE(SUM(price), 0)").
		Where("payment_status = ?", constants.PaymentStatusPaid).
		Scan(&totalRevenue).Error; err != nil {
		return nil, storageError(err, "sum revenue failed")
	}
	if err := db.Model(&model.Order{}).
		Select("COALESCE(SUM(price), 0)").
		Where("payment_status = ? AND created_at >= ?", constants.PaymentStatusPaid, today).
		Scan(&dailyRevenue).Error; err != nil {
		return nil, storageError(err, "sum daily revenue failed")
	}
	stats.TotalRevenue = roundMoney(totalRevenue)
	stats.DailyRevenue = roundMoney(dailyRevenue)

	// 履约状态分布
	var fulfillment []fulfillmentCount
	if err := db.Model(&model.Order{}).
		Select("fulfillment_status, COUNT(*) AS count").
		Group("fulfillment_status").
		Scan(&fulfillment).Error; err != nil {
		return nil, storageError(err, "count fulfillment status failed")
	}
	stats.OrderStatus, stats.SuccessfulTopUps = summarizeFulfillment(fulfillment)

	// 热门游戏
	stats.OrdersByGame = []*biz.GameOrderCount{}
	if err := db.Model(&model.Order{}).
		Select("game_name, COUNT(*) AS count").
		Group("game_name").
		Order("count DESC").
		Limit(statsTopGames).
		Scan(&stats.OrdersByGame).Error; err != nil {
		return nil, storageError(err, "count orders by game failed")
	}

	// 最近订单
	var recent []*model.Order
	if err := db.Order("created_at DESC").Limit(statsRecentLimit).Find(&recent).Error; err != nil {
		return nil, storageError(err, "list recent orders failed")
	}
	recentOrders, err := toBizOrders(recent)
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recentOrders

	// 最近 7 天每日订单数
	since := today.AddDate(0, 0, -(statsChartDays - 1))
	var days []dayCount
	if err := db.Model(&model.Order{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') AS day, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("day").
		Order("day ASC").
		Scan(&days).Error; err != nil {
		return nil, storageError(err, "count daily chart failed")
	}
	stats.ChartData = fillChartData(days, today, statsChartDays)

	return stats, nil
}

// summarizeFulfillment 履约状态计数，delivered 计为 completed
func summarizeFulfillment(rows []fulfillmentCount) (biz.OrderStatusCount, int64) {
	var counts biz.OrderStatusCount
	for _, row := range rows {
		switch row.FulfillmentStatus {
		case constants.FulfillmentStatusPending:
			counts.Pending += row.Count
		case constants.FulfillmentStatusDelivered:
			counts.Completed += row.Count
		case constants.FulfillmentStatusFailed:
			counts.Failed += row.Count
		}
	}
	return counts, counts.Completed
}

// fillChartData 补齐没有订单的日期
func fillChartData(rows []dayCount, today time.Time, days int) []*biz.DailyOrderCount {
	byDay := make(map[string]int64, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row.Count
	}
	chart := make([]*biz.DailyOrderCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(constants.TimeFormatDay)
		chart = append(chart, &biz.DailyOrderCount{Date: day, Orders: byDay[day]})
	}
	return chart
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
