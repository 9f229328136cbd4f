package biz

import (
	"testing"

	"topup-service/internal/constants"
	"topup-service/internal/crypto"
	topupErrors "topup-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		status      string
		ok          bool
		payment     string
		status2     string
		fulfillment string
	}{
		{"SUCCESS", true, "paid", "completed", "pending"},
		{" success ", true, "paid", "completed", "pending"},
		{"FAILED", true, "failed", "failed", ""},
		{"EXPIRED", true, "expired", "expired", ""},
		{"PENDING", false, "", "", ""},
		{"", false, "", "", ""},
	}
	for _, tt := range tests {
		got, ok := MapGatewayStatus(tt.status)
		assert.Equal(t, tt.ok, ok, tt.status)
		assert.Equal(t, tt.payment, got.PaymentStatus, tt.status)
		assert.Equal(t, tt.status2, got.Status, tt.status)
		assert.Equal(t, tt.fulfillment, got.FulfillmentStatus, tt.status)
	}
}

func TestNormalizeLegacyStatus(t *testing.T) {
	assert.Equal(t, "SUCCESS", NormalizeLegacyStatus("completed"))
	assert.Equal(t, "SUCCESS", NormalizeLegacyStatus("SUCCESS"))
	assert.Equal(t, "FAILED", NormalizeLegacyStatus("failed"))
	assert.Equal(t, "EXPIRED", NormalizeLegacyStatus("Expired"))
	assert.Equal(t, "refunded", NormalizeLegacyStatus("refunded"))
}

func TestNotification_Meta(t *testing.T) {
	n := &Notification{Metadata: map[string]interface{}{
		"orderId": " ORD1 ",
		"id":      float64(42),
		"nested":  map[string]interface{}{},
	}}
	assert.Equal(t, "ORD1", n.Meta("orderId"))
	assert.Equal(t, "42", n.Meta("id"))
	assert.Equal(t, "", n.Meta("nested"))
	assert.Equal(t, "", n.Meta("missing"))
	assert.Equal(t, "", (&Notification{}).OrderRef())
}

func TestNotification_LockKey(t *testing.T) {
	assert.Equal(t, "TXN1", (&Notification{TransactionID: "TXN1", Metadata: map[string]interface{}{"orderId": "ORD1"}}).LockKey())
	assert.Equal(t, "ref:ORD1", (&Notification{Metadata: map[string]interface{}{"orderId": "ORD1"}}).LockKey())
	assert.Equal(t, "", (&Notification{}).LockKey())
}

func TestDecodeNotification(t *testing.T) {
	blob, err := crypto.Encrypt(map[string]interface{}{
		"transactionId": "TXN1",
		"status":        "SUCCESS",
		"amount":        100,
		"currency":      "USD",
		"metadata":      map[string]interface{}{"orderId": "ORD1"},
		"products": []map[string]interface{}{
			{"id": "it1", "productId": "p1", "name": "100 Diamonds", "price": 5, "quantity": 1},
		},
	}, testSecretKey)
	require.NoError(t, err)

	n, raw, err := DecodeNotification(blob, testSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "TXN1", n.TransactionID)
	assert.Equal(t, 100.0, n.Amount)
	assert.Equal(t, "ORD1", n.OrderRef())
	require.Len(t, n.Products, 1)
	assert.Equal(t, "it1", n.Products[0].ID)
	assert.Equal(t, "TXN1", raw["transactionId"])
}

func TestDecodeNotification_Errors(t *testing.T) {
	_, _, err := DecodeNotification("not-base64!", testSecretKey)
	assert.True(t, topupErrors.IsDecryption(err))

	_, _, err = DecodeNotification("AAAA", "short")
	assert.True(t, topupErrors.IsConfiguration(err))

	// 字段类型不匹配
	blob, err := crypto.Encrypt(map[string]interface{}{"transactionId": "TXN1", "amount": "lots"}, testSecretKey)
	require.NoError(t, err)
	_, raw, err := DecodeNotification(blob, testSecretKey)
	assert.True(t, topupErrors.IsDecryption(err))
	assert.Equal(t, "TXN1", raw["transactionId"])
}

func TestDecide(t *testing.T) {
	paid := &Order{PaymentStatus: constants.PaymentStatusPaid, TransactionID: "TXN1"}

	d := decide(paid, &Notification{TransactionID: "TXN1", Status: "SUCCESS"})
	assert.Equal(t, constants.OutcomeDuplicate, d.outcome)

	d = decide(paid, &Notification{TransactionID: "TXN2", Status: "SUCCESS"})
	assert.Equal(t, constants.OutcomeConflict, d.outcome)

	// 未知状态优先于交易号检查
	d = decide(paid, &Notification{TransactionID: "TXN2", Status: "CHARGEBACK"})
	assert.Equal(t, constants.OutcomeIgnored, d.outcome)

	swept := &Order{PaymentStatus: constants.PaymentStatusExpired, TransactionID: "TXN1", LocallyExpired: true}
	d = decide(swept, &Notification{TransactionID: "TXN1", Status: "FAILED"})
	assert.Equal(t, constants.OutcomeApplied, d.outcome)
	d = decide(swept, &Notification{TransactionID: "TXN2", Status: "SUCCESS"})
	assert.Equal(t, constants.OutcomeConflict, d.outcome)

	d = decide(&Order{}, &Notification{Status: "FAILED"})
	assert.Equal(t, constants.OutcomeApplied, d.outcome)
	assert.Equal(t, constants.PaymentStatusFailed, d.transition.PaymentStatus)
}
