package service

import (
	"context"
	"strings"

	"topup-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// OrderRequest 下单请求
type OrderRequest struct {
	OrderID       string          `json:"orderId"`
	GameID        string          `json:"gameId"`
	GameName      string          `json:"gameName"`
	PackageID     string          `json:"packageId"`
	PackageName   string          `json:"packageName"`
	Amount        float64         `json:"amount"`
	Price         float64         `json:"price"`
	Currency      string          `json:"currency"`
	UserID        string          `json:"userId"`
	ServerID      string          `json:"serverId"`
	PaymentMethod string          `json:"paymentMethod"`
	Items         []biz.OrderItem `json:"items"`
	Notes         string          `json:"notes"`
}

func (r *OrderRequest) toBiz() *biz.Order {
	return &biz.Order{
		OrderID:       strings.TrimSpace(r.OrderID),
		GameID:        strings.TrimSpace(r.GameID),
		GameName:      r.GameName,
		PackageID:     strings.TrimSpace(r.PackageID),
		PackageName:   r.PackageName,
		Amount:        r.Amount,
		Price:         r.Price,
		Currency:      r.Currency,
		UserID:        strings.TrimSpace(r.UserID),
		ServerID:      r.ServerID,
		PaymentMethod: r.PaymentMethod,
		Items:         r.Items,
		Notes:         r.Notes,
	}
}

// CheckoutReply 发起支付的应答
type CheckoutReply struct {
	Success       bool       `json:"success"`
	OrderID       string     `json:"orderId"`
	TransactionID string     `json:"transactionId"`
	RedirectURL   string     `json:"redirectUrl"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Order         *biz.Order `json:"order"`
}

// GetOrderRequest 查询单个订单
type GetOrderRequest struct {
	ID string `json:"id"`
}

// ListOrdersRequest 订单列表查询参数
type ListOrdersRequest struct {
	Status string `json:"status"`
	GameID string `json:"gameId"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// Pagination 分页信息
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// ListOrdersReply 订单列表
type ListOrdersReply struct {
	Orders     []*biz.Order `json:"orders"`
	Pagination Pagination   `json:"pagination"`
}

// UpdateOrderRequest 管理端修改订单
type UpdateOrderRequest struct {
	ID                string  `json:"id"`
	FulfillmentStatus *string `json:"fulfillmentStatus"`
	Notes             *string `json:"notes"`
}

// DashboardStatsRequest 仪表盘统计（无参数）
type DashboardStatsRequest struct{}

// OrderService 下单、订单查询和管理端接口
type OrderService struct {
	orders *biz.OrderUseCase
	stats  *biz.StatsUseCase
	log    *log.Helper
}

// NewOrderService 创建 OrderService
func NewOrderService(orders *biz.OrderUseCase, stats *biz.StatsUseCase, logger log.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		stats:  stats,
		log:    log.NewHelper(logger),
	}
}

// CreateOrder 创建待支付订单
func (s *OrderService) CreateOrder(ctx context.Context, req *OrderRequest) (*biz.Order, error) {
	order, err := s.orders.CreateOrder(ctx, req.toBiz())
	if err != nil {
		s.log.Errorf("CreateOrder failed: %v", err)
		return nil, err
	}
	return order, nil
}

// Checkout 创建订单并跳转到网关支付
func (s *OrderService) Checkout(ctx context.Context, req *OrderRequest) (*CheckoutReply, error) {
	result, err := s.orders.Checkout(ctx, req.toBiz())
	if err != nil {
		s.log.Errorf("Checkout failed: %v", err)
		return nil, err
	}
	return &CheckoutReply{
		Success:       true,
		OrderID:       result.Order.OrderID,
		TransactionID: result.Order.TransactionID,
		RedirectURL:   result.RedirectURL,
		Amount:        result.Order.Amount,
		Currency:      result.Order.Currency,
		Order:         result.Order,
	}, nil
}

// GetOrder 按 orderId、内部 ID 或交易号查询订单
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*biz.Order, error) {
	return s.orders.GetOrder(ctx, strings.TrimSpace(req.ID))
}

// ListOrders 管理端订单列表
func (s *OrderService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersReply, error) {
	filter := &biz.OrderFilter{
		PaymentStatus: req.Status,
		GameID:        req.GameID,
		Page:          req.Page,
		PageSize:      req.Limit,
	}
	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		s.log.Errorf("ListOrders failed: %v", err)
		return nil, err
	}
	if orders == nil {
		orders = []*biz.Order{}
	}

	pages := int64(0)
	if filter.PageSize > 0 {
		pages = (total + int64(filter.PageSize) - 1) / int64(filter.PageSize)
	}
	return &ListOrdersReply{
		Orders: orders,
		Pagination: Pagination{
			Total: total,
			Page:  filter.Page,
			Limit: filter.PageSize,
			Pages: pages,
		},
	}, nil
}

// UpdateOrder 管理端修改履约状态或备注
func (s *OrderService) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*biz.Order, error) {
	return s.orders.UpdateOrder(ctx, strings.TrimSpace(req.ID), &biz.OrderPatch{
		FulfillmentStatus: req.FulfillmentStatus,
		Notes:             req.Notes,
	})
}

// GetDashboardStats 仪表盘统计
func (s *OrderService) GetDashboardStats(ctx context.Context, _ *DashboardStatsRequest) (*biz.DashboardStats, error) {
	stats, err := s.stats.GetDashboardStats(ctx)
	if err != nil {
		s.log.Errorf("GetDashboardStats failed: %v", err)
		return nil, err
	}
	return stats, nil
}
