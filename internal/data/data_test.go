package data

import (
	"errors"
	"io"
	"testing"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/data/model"
	topupErrors "topup-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = log.NewStdLogger(io.Discard)

func TestStorageError(t *testing.T) {
	assert.Nil(t, storageError(nil, "x"))

	wrapped := storageError(errors.New("dial tcp: connection refused"), "query order failed")
	assert.True(t, topupErrors.IsStorage(wrapped))
	assert.ErrorContains(t, errors.Unwrap(wrapped), "connection refused")

	conflict := topupErrors.ErrorConflict("already bound")
	assert.Same(t, conflict, storageError(conflict, "update order failed"))
}

func TestOrderModelConversion(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	o := &biz.Order{
		ID:            7,
		OrderID:       "ORD1",
		TransactionID: "TXN1",
		GameName:      "Mobile Legends",
		Price:         5,
		PaymentStatus: "paid",
		Items: []biz.OrderItem{
			{ProductID: "p1", Name: "100 Diamonds", Price: 5, Quantity: 1, ItemID: "it1"},
		},
		TotalQuantity: 1,
		Version:       3,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m, err := toOrderModel(o)
	require.NoError(t, err)
	require.NotNil(t, m.TransactionID)
	assert.Equal(t, "TXN1", *m.TransactionID)
	assert.JSONEq(t, `[{"productId":"p1","name":"100 Diamonds","price":5,"quantity":1,"itemId":"it1"}]`, string(m.Items))

	back, err := toBizOrder(m)
	require.NoError(t, err)
	assert.Equal(t, o, back)
}

func TestOrderModelConversion_UnboundTransaction(t *testing.T) {
	m, err := toOrderModel(&biz.Order{OrderID: "ORD1"})
	require.NoError(t, err)
	assert.Nil(t, m.TransactionID)
	assert.Equal(t, "[]", string(m.Items))

	o, err := toBizOrder(&model.Order{OrderID: "ORD1"})
	require.NoError(t, err)
	assert.Empty(t, o.TransactionID)
	assert.NotNil(t, o.Items)
	assert.Empty(t, o.Items)
}

func TestToBizOrder_MalformedItems(t *testing.T) {
	_, err := toBizOrder(&model.Order{OrderID: "ORD1", Items: []byte(`{"not":"a list"}`)})
	assert.True(t, topupErrors.IsStorage(err))
}

func TestNotificationLogModel(t *testing.T) {
	long := make([]rune, 600)
	for i := range long {
		long[i] = '错'
	}
	m, err := toNotificationLogModel(&biz.NotificationLog{
		Source:  "webhook",
		Payload: map[string]interface{}{"transactionId": "TXN1"},
		Result:  biz.NotificationResultFailed,
		Error:   string(long),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"transactionId":"TXN1"}`, string(m.Payload))
	assert.Len(t, []rune(m.Error), maxLogErrorLength)

	m, err = toNotificationLogModel(&biz.NotificationLog{Source: "confirm"})
	require.NoError(t, err)
	assert.Nil(t, m.Payload)
}

func TestOrderCacheKey(t *testing.T) {
	assert.Equal(t, "topup:order:ORD1", orderCacheKey("ORD1"))
}
