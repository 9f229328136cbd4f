package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/constants"
	"topup-service/internal/data/model"
	topupErrors "topup-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderCacheTTL 订单缓存过期时间
const orderCacheTTL = 5 * time.Minute

// cacheOrderScript 缓存中已有相同或更新版本时不覆盖，KEYS[1]=key ARGV=[订单JSON, version, ttl毫秒]
var cacheOrderScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, cached = pcall(cjson.decode, cur)
	if ok and type(cached) == 'table' then
		local v = tonumber(cached['version'])
		if v and v >= tonumber(ARGV[2]) then
			return 0
		end
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// orderRepo 订单数据访问（MySQL + Redis 读缓存）
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单 repo（返回 biz.OrderRepo 接口）
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateOrder 创建订单，orderId 或交易号重复时返回 ConflictError
func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) (*biz.Order, error) {
	m, err := toOrderModel(order)
	if err != nil {
		return nil, err
	}
	m.ID = 0
	m.Version = 0
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, topupErrors.ErrorConflict("order %s already exists", order.OrderID).WithCause(err)
		}
		r.log.Errorf("CreateOrder failed: order_id=%s, error=%v", order.OrderID, err)
		return nil, storageError(err, "create order failed")
	}

	return toBizOrder(m)
}

// GetOrderByOrderID 通过 orderId 查询订单，优先读缓存
func (r *orderRepo) GetOrderByOrderID(ctx context.Context, orderID string) (*biz.Order, error) {
	if orderID == "" {
		return nil, nil
	}
	if cached := r.getCache(ctx, orderID); cached != nil {
		return cached, nil
	}
	order, err := r.first(ctx, r.data.db.WithContext(ctx).Where("order_id = ?", orderID))
	if err != nil || order == nil {
		return order, err
	}
	if err := r.storeCache(order); err != nil {
		r.log.Warnf("refresh order cache failed: order_id=%s, error=%v", orderID, err)
	}
	return order, nil
}

// GetOrderByTransactionID 通过网关交易号查询订单
func (r *orderRepo) GetOrderByTransactionID(ctx context.Context, transactionID string) (*biz.Order, error) {
	if transactionID == "" {
		return nil, nil
	}
	return r.first(ctx, r.data.db.WithContext(ctx).Where("transaction_id = ?", transactionID))
}

// GetOrderByRef 通过内部 ID 或 orderId 查询订单
func (r *orderRepo) GetOrderByRef(ctx context.Context, ref string) (*biz.Order, error) {
	if ref == "" {
		return nil, nil
	}
	query := r.data.db.WithContext(ctx)
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		query = query.Where("id = ? OR order_id = ?", id, ref)
	} else {
		query = query.Where("order_id = ?", ref)
	}
	return r.first(ctx, query.Order("id ASC"))
}

// UpdateOrder 行锁内读-改-写，更新 updated_at 并递增 version
func (r *orderRepo) UpdateOrder(ctx context.Context, orderID string, mutate biz.OrderMutator) (*biz.Order, error) {
	var result *biz.Order
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁定订单记录
		var m model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		current, err := toBizOrder(&m)
		if err != nil {
			return err
		}

		// 2. 业务修改
		changed, err := mutate(current)
		if err != nil {
			return err
		}
		if !changed {
			result, err = toBizOrder(&m)
			return err
		}

		// 3. 写回，身份字段不允许修改
		next, err := toOrderModel(current)
		if err != nil {
			return err
		}
		next.ID = m.ID
		next.OrderID = m.OrderID
		next.CreatedAt = m.CreatedAt
		next.Version = m.Version + 1
		next.UpdatedAt = time.Now()
		if err := tx.Save(next).Error; err != nil {
			return err
		}

		result, err = toBizOrder(next)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, topupErrors.ErrorConflict("transaction already bound to another order").WithCause(err)
		}
		r.log.Errorf("UpdateOrder failed: order_id=%s, error=%v", orderID, err)
		return nil, storageError(err, "update order failed")
	}
	if result != nil {
		// 写入新版本，失败时删除旧缓存
		if err := r.storeCache(result); err != nil {
			r.log.Warnf("write order cache failed: order_id=%s, error=%v", result.OrderID, err)
			r.invalidateCache(result.OrderID)
		}
	}
	return result, nil
}

// ListOrders 分页查询订单，按创建时间倒序
func (r *orderRepo) ListOrders(ctx context.Context, filter *biz.OrderFilter) ([]*biz.Order, int64, error) {
	query := r.data.db.WithContext(ctx).Model(&model.Order{})
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.GameID != "" {
		query = query.Where("game_id = ?", filter.GameID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError(err, "count orders failed")
	}

	var models []*model.Order
	if err := query.Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&models).Error; err != nil {
		return nil, 0, storageError(err, "list orders failed")
	}

	orders, err := toBizOrders(models)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListStalePendingOrders 查询创建时间早于 before 的待支付订单
func (r *orderRepo) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*biz.Order, error) {
	var models []*model.Order
	if err := r.data.db.WithContext(ctx).
		Where("payment_status = ? AND created_at < ?", constants.PaymentStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, storageError(err, "list stale orders failed")
	}
	return toBizOrders(models)
}

func (r *orderRepo) first(ctx context.Context, query *gorm.DB) (*biz.Order, error) {
	var m model.Order
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("query order failed: %v", err)
		return nil, storageError(err, "query order failed")
	}
	return toBizOrder(&m)
}

// ========== 缓存 ==========

func orderCacheKey(orderID string) string {
	return fmt.Sprintf("%s%s", constants.RedisKeyOrder, orderID)
}

// getCache 读取缓存，任何错误都视为未命中
func (r *orderRepo) getCache(ctx context.Context, orderID string) *biz.Order {
	if r.data.rdb == nil {
		return nil
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	raw, err := r.data.rdb.Get(cacheCtx, orderCacheKey(orderID)).Bytes()
	if err != nil {
		return nil
	}
	var order biz.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil
	}
	return &order
}

// storeCache 按版本写入缓存，旧快照不会覆盖已缓存的新版本
func (r *orderRepo) storeCache(order *biz.Order) error {
	if r.data.rdb == nil || order == nil {
		return nil
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	cacheCtx, cacheCancel := cacheContext()
	defer cacheCancel()
	return cacheOrderScript.Run(cacheCtx, r.data.rdb,
		[]string{orderCacheKey(order.OrderID)},
		raw, order.Version, orderCacheTTL.Milliseconds()).Err()
}

// invalidateCache 删除缓存，下次读取时重新加载
func (r *orderRepo) invalidateCache(orderID string) {
	if r.data.rdb == nil {
		return
	}
	cacheCtx, cacheCancel := cacheContext()
	defer cacheCancel()
	if err := r.data.rdb.Del(cacheCtx, orderCacheKey(orderID)).Err(); err != nil {
		r.log.Warnf("invalidate order cache failed: order_id=%s, error=%v", orderID, err)
	}
}

// ========== 转换 ==========

func toOrderModel(o *biz.Order) (*model.Order, error) {
	items := o.Items
	if items == nil {
		items = []biz.OrderItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, topupErrors.ErrorInvalidArgument("invalid order items").WithCause(err)
	}
	m := &model.Order{
		ID:                o.ID,
		OrderID:           o.OrderID,
		GameID:            o.GameID,
		GameName:          o.GameName,
		PackageID:         o.PackageID,
		PackageName:       o.PackageName,
		Amount:            o.Amount,
		Price:             o.Price,
		Currency:          o.Currency,
		UserID:            o.UserID,
		ServerID:          o.ServerID,
		PaymentMethod:     o.PaymentMethod,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Status:            o.Status,
		Items:             datatypes.JSON(raw),
		TotalQuantity:     o.TotalQuantity,
		Notes:             o.Notes,
		LocallyExpired:    o.LocallyExpired,
		Version:           o.Version,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if o.TransactionID != "" {
		txID := o.TransactionID
		m.TransactionID = &txID
	}
	return m, nil
}

func toBizOrder(m *model.Order) (*biz.Order, error) {
	o := &biz.Order{
		ID:                m.ID,
		OrderID:           m.OrderID,
		GameID:            m.GameID,
		GameName:          m.GameName,
		PackageID:         m.PackageID,
		PackageName:       m.PackageName,
		Amount:            m.Amount,
		Price:             m.Price,
		Currency:          m.Currency,
		UserID:            m.UserID,
		ServerID:          m.ServerID,
		PaymentMethod:     m.PaymentMethod,
		PaymentStatus:     m.PaymentStatus,
		FulfillmentStatus: m.FulfillmentStatus,
		Status:            m.Status,
		Items:             []biz.OrderItem{},
		TotalQuantity:     m.TotalQuantity,
		Notes:             m.Notes,
		LocallyExpired:    m.LocallyExpired,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.TransactionID != nil {
		o.TransactionID = *m.TransactionID
	}
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &o.Items); err != nil {
			return nil, topupErrors.ErrorStorage("order %s has malformed items", m.OrderID).WithCause(err)
		}
	}
	return o, nil
}

func toBizOrders(models []*model.Order) ([]*biz.Order, error) {
	orders := make([]*biz.Order, 0, len(models))
	for _, m := range models {
		o, err := toBizOrder(m)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
