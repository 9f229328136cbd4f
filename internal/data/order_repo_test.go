package data

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/data/model"
	topupErrors "topup-service/internal/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestData 内存 SQLite + miniredis
func newTestData(t *testing.T) (*Data, *miniredis.Miniredis) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只存在于单个连接上
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Order{}, &model.NotificationLog{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		_ = sqlDB.Close()
	})
	return &Data{db: db, rdb: rdb}, mr
}

func newTestOrderRepo(t *testing.T) (*orderRepo, *miniredis.Miniredis) {
	t.Helper()
	d, mr := newTestData(t)
	return NewOrderRepo(d, testLogger).(*orderRepo), mr
}

func testOrder(orderID string) *biz.Order {
	return &biz.Order{
		OrderID:           orderID,
		GameID:            "g1",
		GameName:          "Mobile Legends",
		PackageID:         "pk1",
		PackageName:       "100 Diamonds",
		Price:             5,
		Currency:          "USD",
		UserID:            "u1",
		PaymentStatus:     "pending",
		FulfillmentStatus: "pending",
		Status:            "pending",
		Items:             []biz.OrderItem{{ProductID: "pk1", Name: "100 Diamonds", Price: 5, Quantity: 1}},
		TotalQuantity:     1,
	}
}

func cachedOrder(t *testing.T, mr *miniredis.Miniredis, orderID string) *biz.Order {
	t.Helper()
	raw, err := mr.Get(orderCacheKey(orderID))
	if err != nil {
		return nil
	}
	var o biz.Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	return &o
}

func TestOrderRepo_CreateOrder(t *testing.T) {
	r, _ := newTestOrderRepo(t)
	ctx := context.Background()

	created, err := r.CreateOrder(ctx, testOrder("ORD1"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, 0, created.Version)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = r.CreateOrder(ctx, testOrder("ORD1"))
	require.Error(t, err)
	assert.True(t, topupErrors.IsConflict(err))

	bound := testOrder("ORD2")
	bound.TransactionID = "TXN1"
	_, err = r.CreateOrder(ctx, bound)
	require.NoError(t, err)
	dup := testOrder("ORD3")
	dup.TransactionID = "TXN1"
	_, err = r.CreateOrder(ctx, dup)
	assert.True(t, topupErrors.IsConflict(err))

	// 未绑定交易号的订单可以有多个
	_, err = r.CreateOrder(ctx, testOrder("ORD4"))
	assert.NoError(t, err)
}

func TestOrderRepo_Lookups(t *testing.T) {
	r, _ := newTestOrderRepo(t)
	ctx := context.Background()

	o := testOrder("ORD1")
	o.TransactionID = "TXN1"
	created, err := r.CreateOrder(ctx, o)
	require.NoError(t, err)

	byTx, err := r.GetOrderByTransactionID(ctx, "TXN1")
	require.NoError(t, err)
	require.NotNil(t, byTx)
	assert.Equal(t, "ORD1", byTx.OrderID)
	require.Len(t, byTx.Items, 1)
	assert.Equal(t, "pk1", byTx.Items[0].ProductID)

	byRef, err := r.GetOrderByRef(ctx, "ORD1")
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, created.ID, byRef.ID)

	byID, err := r.GetOrderByRef(ctx, strconv.FormatUint(created.ID, 10))
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "ORD1", byID.OrderID)

	missing, err := r.GetOrderByRef(ctx, "ORD404")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = r.GetOrderByTransactionID(ctx, "TXN404")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = r.GetOrderByRef(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_UpdateOrder(t *testing.T) {
	r, _ := newTestOrderRepo(t)
	ctx := context.Background()

	created, err := r.CreateOrder(ctx, testOrder("ORD1"))
	require.NoError(t, err)

	updated, err := r.UpdateOrder(ctx, "ORD1", func(o *biz.Order) (bool, error) {
		o.PaymentStatus = "paid"
		o.TransactionID = "TXN1"
		// 身份字段不会被写回
		o.ID = 999
		o.OrderID = "HIJACK"
		return true, nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "ORD1", updated.OrderID)
	assert.Equal(t, "paid", updated.PaymentStatus)
	assert.Equal(t, "TXN1", updated.TransactionID)
	assert.Equal(t, 1, updated.Version)
	assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Second)

	stored, err := r.GetOrderByTransactionID(ctx, "TXN1")
	require.NoError(t, err)
	assert.Equal(t, "ORD1", stored.OrderID)
	hijacked, err := r.GetOrderByRef(ctx, "HIJACK")
	require.NoError(t, err)
	assert.Nil(t, hijacked)

	// 未修改时不写入，版本不变
	same, err := r.UpdateOrder(ctx, "ORD1", func(o *biz.Order) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, same.Version)

	none, err := r.UpdateOrder(ctx, "ORD404", func(o *biz.Order) (bool, error) {
		t.Fatal("mutator must not run for a missing order")
		return false, nil
	})
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestOrderRepo_UpdateOrderMutatorError(t *testing.T) {
	r, _ := newTestOrderRepo(t)
	ctx := context.Background()
	_, err := r.CreateOrder(ctx, testOrder("ORD1"))
	require.NoError(t, err)

	_, err = r.UpdateOrder(ctx, "ORD1", func(o *biz.Order) (bool, error) {
		o.PaymentStatus = "paid"
		return true, topupErrors.ErrorInvalidArgument("rejected")
	})
	require.Error(t, err)
	assert.True(t, topupErrors.IsInvalidArgument(err))

	stored, err := r.GetOrderByRef(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "pending", stored.PaymentStatus)
	assert.Equal(t, 0, stored.Version)
}

func TestOrderRepo_UpdateOrderTransactionAlreadyBound(t *testing.T) {
	r, _ := newTestOrderRepo(t)
	ctx := context.Background()
	first := testOrder("ORD1")
	first.TransactionID = "TXN1"
	_, err := r.CreateOrder(ctx, first)
	require.NoError(t, err)
	_, err = r.CreateOrder(ctx, testOrder("ORD2"))
	require.NoError(t, err)

	_, err = r.UpdateOrder(ctx, "ORD2", func(o *biz.Order) (bool, error) {
		o.TransactionID = "TXN1"
		return true, nil
	})
	require.Error(t, err)
	assert.True(t, topupErrors.IsConflict(err))
}

func TestOrderRepo_CacheFollowsWrites(t *testing.T) {
	r, mr := newTestOrderRepo(t)
	ctx := context.Background()
	_, err := r.CreateOrder(ctx, testOrder("ORD1"))
	require.NoError(t, err)
	assert.Nil(t, cachedOrder(t, mr, "ORD1"))

	// 未命中时同步回填
	got, err := r.GetOrderByOrderID(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.PaymentStatus)
	cached := cachedOrder(t, mr, "ORD1")
	require.NotNil(t, cached)
	assert.Equal(t, "pending", cached.PaymentStatus)
	assert.True(t, mr.TTL(orderCacheKey("ORD1")) > 0)

	_, err = r.UpdateOrder(ctx, "ORD1", func(o *biz.Order) (bool, error) {
		o.PaymentStatus = "paid"
		return true, nil
	})
	require.NoError(t, err)
	cached = cachedOrder(t, mr, "ORD1")
	require.NotNil(t, cached)
	assert.Equal(t, "paid", cached.PaymentStatus)
	assert.Equal(t, 1, cached.Version)

	got, err = r.GetOrderByOrderID(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "paid", got.PaymentStatus)
}

func TestOrderRepo_StaleSnapshotDoesNotOverwriteCache(t *testing.T) {
	r, mr := newTestOrderRepo(t)
	ctx := context.Background()
	_, err := r.CreateOrder(ctx, testOrder("ORD1"))
	require.NoError(t, err)

	// 读取方先拿到旧快照，写入方提交后才回填
	snapshot, err := r.GetOrderByRef(ctx, "ORD1")
	require.NoError(t, err)
	_, err = r.UpdateOrder(ctx, "ORD1", func(o *biz.Order) (bool, error) {
		o.PaymentStatus = "paid"
		return true, nil
	})
	require.NoError(t, err)
	require.NoError(t, r.storeCache(snapshot))

	cached := cachedOrder(t, mr, "ORD1")
	require.NotNil(t, cached)
	assert.Equal(t, "paid", cached.PaymentStatus)
	assert.Equal(t, 1, cached.Version)

	// 删除后旧快照可以重新写入，下一次更新会覆盖它
	mr.Del(orderCacheKey("ORD1"))
	require.NoError(t, r.storeCache(snapshot))
	assert.Equal(t, "pending", cachedOrder(t, mr, "ORD1").PaymentStatus)
}

func TestOrderRepo_WithoutRedis(t *testing.T) {
	d, _ := newTestData(t)
	d.rdb = nil
	r := NewOrderRepo(d, testLogger)
	ctx := context.Background()

	_, err := r.CreateOrder(ctx, testOrder("ORD1"))
	require.NoError(t, err)
	_, err = r.UpdateOrder(ctx, "ORD1", func(o *biz.Order) (bool, error) {
		o.Notes = "checked"
		return true, nil
	})
	require.NoError(t, err)
	got, err := r.GetOrderByOrderID(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "checked", got.Notes)
}

func TestOrderRepo_ListOrders(t *testing.T) {
	r, _ := newTestOrderRepo(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		o := testOrder("ORD" + strconv.Itoa(i))
		if i == 3 {
			o.GameID = "g2"
		}
		_, err := r.CreateOrder(ctx, o)
		require.NoError(t, err)
	}

	orders, total, err := r.ListOrders(ctx, &biz.OrderFilter{GameID: "g1", Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 1)

	orders, total, err = r.ListOrders(ctx, &biz.OrderFilter{PaymentStatus: "paid", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, orders)
}
