package biz

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"topup-service/internal/constants"
	"topup-service/internal/crypto"
	topupErrors "topup-service/internal/errors"
	"topup-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// OrderItem 订单行
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
	ItemID    string  `json:"itemId,omitempty"` // 网关侧的商品行 ID
}

// Order 订单领域对象
//
// 所有字段修改必须通过 OrderRepo.UpdateOrder 完成，UpdatedAt 和 Version 由存储层维护。
type Order struct {
	ID                uint64      `json:"id"`
	OrderID           string      `json:"orderId"`
	TransactionID     string      `json:"transactionId,omitempty"`
	GameID            string      `json:"gameId"`
	GameName          string      `json:"gameName"`
	PackageID         string      `json:"packageId"`
	PackageName       string      `json:"packageName"`
	Amount            float64     `json:"amount"`
	Price             float64     `json:"price"`
	Currency          string      `json:"currency"`
	UserID            string      `json:"userId"`
	ServerID          string      `json:"serverId,omitempty"`
	PaymentMethod     string      `json:"paymentMethod,omitempty"`
	PaymentStatus     string      `json:"paymentStatus"`
	FulfillmentStatus string      `json:"fulfillmentStatus"`
	Status            string      `json:"status"`
	Items             []OrderItem `json:"items"`
	TotalQuantity     int         `json:"totalQuantity"`
	Notes             string      `json:"notes,omitempty"`
	LocallyExpired    bool        `json:"locallyExpired,omitempty"` // 由超时清理关闭，网关未确认
	Version           int         `json:"version"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// OrderSummary 买家可见的订单字段，不包含内部 ID、交易号和备注
type OrderSummary struct {
	OrderID           string      `json:"orderId"`
	Status            string      `json:"status"`
	PaymentStatus     string      `json:"paymentStatus"`
	FulfillmentStatus string      `json:"fulfillmentStatus"`
	Amount            float64     `json:"amount"`
	Currency          string      `json:"currency"`
	Items             []OrderItem `json:"items"`
	UserID            string      `json:"userId"`
	ServerID          string      `json:"serverId,omitempty"`
	GameName          string      `json:"gameName"`
	PackageName       string      `json:"packageName"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Summary 转换为买家可见的订单字段
func (o *Order) Summary() *OrderSummary {
	items := o.Items
	if items == nil {
		items = []OrderItem{}
	}
	return &OrderSummary{
		OrderID:           o.OrderID,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Amount:            o.Amount,
		Currency:          o.Currency,
		Items:             items,
		UserID:            o.UserID,
		ServerID:          o.ServerID,
		GameName:          o.GameName,
		PackageName:       o.PackageName,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// OrderFilter 订单列表过滤条件
type OrderFilter struct {
	PaymentStatus string
	GameID        string
	Page          int
	PageSize      int
}

// OrderMutator 在行锁内修改订单，返回 false 表示无需写入
type OrderMutator func(order *Order) (bool, error)

// OrderRepo 订单数据层接口（定义在 biz 层）
//
// 查询方法在记录不存在时返回 nil, nil。
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *Order) (*Order, error)
	GetOrderByOrderID(ctx context.Context, orderID string) (*Order, error)
	GetOrderByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	// GetOrderByRef 按内部 ID 或 orderId 任一匹配查询
	GetOrderByRef(ctx context.Context, ref string) (*Order, error)
	// UpdateOrder 原子的读-改-写：加行锁读取、执行 mutate、写回并更新 UpdatedAt/Version
	UpdateOrder(ctx context.Context, orderID string, mutate OrderMutator) (*Order, error)
	ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error)
	ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*Order, error)
}

// OrderPatch 管理端可修改的字段
type OrderPatch struct {
	FulfillmentStatus *string
	Notes             *string
}

// CheckoutResult 发起支付结果
type CheckoutResult struct {
	Order       *Order
	RedirectURL string
}

// OrderUseCase 订单业务逻辑（下单、查询、管理端修改、超时关闭）
type OrderUseCase struct {
	repo    OrderRepo
	gateway GatewayClient
	events  *OrderEvents
	conf    *TopupConfig
	log     *log.Helper
	metrics *metrics.TopupMetrics
}

// NewOrderUseCase 创建订单 UseCase
func NewOrderUseCase(repo OrderRepo, gateway GatewayClient, events *OrderEvents, conf *TopupConfig, logger log.Logger) *OrderUseCase {
	return &OrderUseCase{
		repo:    repo,
		gateway: gateway,
		events:  events,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// NewOrderID 生成订单号：ORD + 毫秒时间戳 + 三位以内随机数
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("%s%d%d", constants.OrderIDPrefix, now.UnixMilli(), rand.Intn(1000))
}

// roundMoney 金额保留两位小数
func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// CreateOrder 创建待支付订单
func (uc *OrderUseCase) CreateOrder(ctx context.Context, draft *Order) (*Order, error) {
	if draft == nil || draft.GameID == "" || draft.PackageID == "" || draft.UserID == "" {
		return nil, topupErrors.ErrorInvalidArgument("gameId, packageId and userId are required")
	}
	if draft.Price <= 0 {
		return nil, topupErrors.ErrorInvalidArgument("price must be positive")
	}

	order := *draft
	order.ID = 0
	order.TransactionID = ""
	if order.OrderID == "" {
		order.OrderID = NewOrderID(time.Now())
	}
	if order.Currency == "" {
		order.Currency = uc.conf.DefaultCurrency
	}
	order.Price = roundMoney(order.Price)
	order.PaymentStatus = constants.PaymentStatusPending
	order.FulfillmentStatus = constants.FulfillmentStatusPending
	order.Status = constants.OrderStatusPending
	if len(order.Items) == 0 {
		order.Items = []OrderItem{{
			ProductID: order.PackageID,
			Name:      order.PackageName,
			Price:     order.Price,
			Quantity:  1,
		}}
	}
	order.TotalQuantity = totalQuantity(order.Items)

	created, err := uc.repo.CreateOrder(ctx, &order)
	if err != nil {
		uc.log.Errorf("CreateOrder failed: order_id=%s, error=%v", order.OrderID, err)
		return nil, err
	}
	if uc.metrics != nil {
		uc.metrics.OrderCreatedTotal.WithLabelValues(constants.OrderOriginCheckout).Inc()
	}
	uc.log.Infof("Order created: order_id=%s, game_id=%s, package_id=%s, price=%.2f %s",
		created.OrderID, created.GameID, created.PackageID, created.Price, created.Currency)
	uc.events.Emit(ctx, created)
	return created, nil
}

// Checkout 创建订单并在网关登记支付，返回跳转地址
func (uc *OrderUseCase) Checkout(ctx context.Context, draft *Order) (*CheckoutResult, error) {
	if err := uc.conf.CheckSecretKey(); err != nil {
		return nil, err
	}
	if err := uc.conf.CheckAPIKey(); err != nil {
		return nil, err
	}

	order, err := uc.CreateOrder(ctx, draft)
	if err != nil {
		return nil, err
	}

	products := make([]GatewayProduct, 0, len(order.Items))
	for _, item := range order.Items {
		products = append(products, GatewayProduct{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	payload := &CheckoutPayload{
		Products: products,
		Currency: order.Currency,
		Metadata: map[string]interface{}{
			"orderId":  order.OrderID,
			"userId":   order.UserID,
			"serverId": order.ServerID,
			"gameId":   order.GameID,
		},
		WebhookURL: uc.conf.SiteBaseURL + "/webhook",
		SuccessURL: fmt.Sprintf("%s/payment/success?orderId=%s", uc.conf.SiteBaseURL, order.OrderID),
		CancelURL:  fmt.Sprintf("%s/payment/cancel?orderId=%s", uc.conf.SiteBaseURL, order.OrderID),
	}

	blob, err := crypto.Encrypt(payload, uc.conf.SecretKey)
	if err != nil {
		return nil, err
	}

	reply, err := uc.gateway.CreateCheckout(ctx, &CheckoutRequest{Payload: blob})
	if err != nil {
		uc.log.Errorf("CreateCheckout failed: order_id=%s, error=%v", order.OrderID, err)
		return nil, err
	}

	// 绑定网关交易号，之后的通知可以直接按交易号匹配
	if reply.TransactionID != "" {
		updated, err := uc.repo.UpdateOrder(ctx, order.OrderID, func(o *Order) (bool, error) {
			if o.TransactionID != "" {
				return false, nil
			}
			o.TransactionID = reply.TransactionID
			return true, nil
		})
		if err != nil {
			uc.log.Warnf("bind transaction failed: order_id=%s, transaction_id=%s, error=%v", order.OrderID, reply.TransactionID, err)
		} else if updated != nil {
			order = updated
		}
	}

	uc.log.Infof("Checkout created: order_id=%s, transaction_id=%s", order.OrderID, reply.TransactionID)
	return &CheckoutResult{Order: order, RedirectURL: reply.RedirectURL}, nil
}

// GetOrder 按 orderId、内部 ID、交易号依次查询
func (uc *OrderUseCase) GetOrder(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, topupErrors.ErrorInvalidArgument("order id is required")
	}
	order, err := uc.repo.GetOrderByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		order, err = uc.repo.GetOrderByRef(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if order == nil {
		order, err = uc.repo.GetOrderByTransactionID(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if order == nil {
		return nil, topupErrors.ErrorOrderNotFound("order %s not found", id)
	}
	return order, nil
}

// ListOrders 订单列表
func (uc *OrderUseCase) ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	return uc.repo.ListOrders(ctx, filter)
}

// UpdateOrder 管理端修改履约状态或备注
func (uc *OrderUseCase) UpdateOrder(ctx context.Context, id string, patch *OrderPatch) (*Order, error) {
	if patch.FulfillmentStatus != nil {
		switch *patch.FulfillmentStatus {
		case constants.FulfillmentStatusPending, constants.FulfillmentStatusDelivered, constants.FulfillmentStatusFailed:
		default:
			return nil, topupErrors.ErrorInvalidArgument("invalid fulfillment status %q", *patch.FulfillmentStatus)
		}
	}

	current, err := uc.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := uc.repo.UpdateOrder(ctx, current.OrderID, func(o *Order) (bool, error) {
		changed := false
		if patch.FulfillmentStatus != nil && o.FulfillmentStatus != *patch.FulfillmentStatus {
			o.FulfillmentStatus = *patch.FulfillmentStatus
			changed = true
		}
		if patch.Notes != nil && o.Notes != *patch.Notes {
			o.Notes = *patch.Notes
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		uc.log.Errorf("UpdateOrder failed: order_id=%s, error=%v", current.OrderID, err)
		return nil, err
	}
	if updated == nil {
		return nil, topupErrors.ErrorOrderNotFound("order %s not found", id)
	}

	uc.log.Infof("Order updated by admin: order_id=%s, fulfillment_status=%s", updated.OrderID, updated.FulfillmentStatus)
	uc.events.Emit(ctx, updated)
	return updated, nil
}

// ExpireStaleOrders 关闭超时未支付的订单，返回关闭数量
func (uc *OrderUseCase) ExpireStaleOrders(ctx context.Context, now time.Time, batch int) (int, error) {
	before := now.Add(-uc.conf.PendingOrderTTL)
	orders, err := uc.repo.ListStalePendingOrders(ctx, before, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, o := range orders {
		updated, err := uc.repo.UpdateOrder(ctx, o.OrderID, func(cur *Order) (bool, error) {
			// 加锁后重新检查，期间可能已经收到支付通知
			if cur.PaymentStatus != constants.PaymentStatusPending || !cur.CreatedAt.Before(before) {
				return false, nil
			}
			cur.PaymentStatus = constants.PaymentStatusExpired
			cur.Status = constants.OrderStatusExpired
			cur.LocallyExpired = true
			return true, nil
		})
		if err != nil {
			uc.log.Warnf("expire order failed: order_id=%s, error=%v", o.OrderID, err)
			continue
		}
		if updated == nil || updated.PaymentStatus != constants.PaymentStatusExpired {
			continue
		}
		expired++
		uc.events.Emit(ctx, updated)
	}
	if expired > 0 && uc.metrics != nil {
		uc.metrics.OrderExpiredTotal.Add(float64(expired))
	}
	return expired, nil
}

func totalQuantity(items []OrderItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// isNumeric 判断字符串是否为纯数字（内部自增 ID 的形式）
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
