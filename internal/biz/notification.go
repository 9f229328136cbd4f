package biz

import (
	"encoding/json"
	"strconv"
	"strings"

	"topup-service/internal/constants"
	"topup-service/internal/crypto"
	topupErrors "topup-service/internal/errors"
)

// Notification 解密后的网关通知
type Notification struct {
	TransactionID string                 `json:"transactionId"`
	Status        string                 `json:"status"`
	Amount        float64                `json:"amount"`
	Currency      string                 `json:"currency"`
	Metadata      map[string]interface{} `json:"metadata"`
	Products      []GatewayProduct       `json:"products"`
}

// Meta 读取 metadata 中的字符串字段，数字按整数格式化
func (n *Notification) Meta(key string) string {
	if n == nil || n.Metadata == nil {
		return ""
	}
	switch v := n.Metadata[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return ""
	}
}

// OrderRef metadata.orderId，可能是内部 ID 或 orderId
func (n *Notification) OrderRef() string {
	return n.Meta("orderId")
}

// LookupKeys 通知中可用于匹配订单的键
func (n *Notification) LookupKeys() LookupKeys {
	return LookupKeys{
		TransactionID: strings.TrimSpace(n.TransactionID),
		OrderRef:      n.OrderRef(),
	}
}

// LockKey 对同一交易串行化处理的锁键，没有交易号时退回订单引用
func (n *Notification) LockKey() string {
	keys := n.LookupKeys()
	if keys.TransactionID != "" {
		return keys.TransactionID
	}
	if keys.OrderRef != "" {
		return "ref:" + keys.OrderRef
	}
	return ""
}

// DecodeNotification 解密网关载荷，返回通知和原始字段
func DecodeNotification(blob, secretKey string) (*Notification, map[string]interface{}, error) {
	raw, err := crypto.DecryptMap(blob, secretKey)
	if err != nil {
		return nil, nil, err
	}
	n, err := NotificationFromMap(raw)
	if err != nil {
		return nil, raw, err
	}
	return n, raw, nil
}

// NotificationFromMap 将解密后的 JSON 对象转换为 Notification
func NotificationFromMap(raw map[string]interface{}) (*Notification, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, topupErrors.ErrorDecryption("payload is not a valid notification").WithCause(err)
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, topupErrors.ErrorDecryption("payload is not a valid notification").WithCause(err)
	}
	return &n, nil
}

// StatusTransition 网关状态映射后的订单状态
type StatusTransition struct {
	PaymentStatus     string
	Status            string
	FulfillmentStatus string // 为空表示不修改
}

// MapGatewayStatus 网关状态映射，无法识别时返回 false
func MapGatewayStatus(status string) (StatusTransition, bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case constants.GatewayStatusSuccess:
		return StatusTransition{
			PaymentStatus:     constants.PaymentStatusPaid,
			Status:            constants.OrderStatusCompleted,
			FulfillmentStatus: constants.FulfillmentStatusPending,
		}, true
	case constants.GatewayStatusFailed:
		return StatusTransition{
			PaymentStatus: constants.PaymentStatusFailed,
			Status:        constants.OrderStatusFailed,
		}, true
	case constants.GatewayStatusExpired:
		return StatusTransition{
			PaymentStatus: constants.PaymentStatusExpired,
			Status:        constants.OrderStatusExpired,
		}, true
	default:
		return StatusTransition{}, false
	}
}

// NormalizeLegacyStatus 旧版明文回调的状态归一化
func NormalizeLegacyStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success":
		return constants.GatewayStatusSuccess
	case "failed":
		return constants.GatewayStatusFailed
	case "expired":
		return constants.GatewayStatusExpired
	default:
		return status
	}
}

// decision 状态转换判定结果
type decision struct {
	outcome    string
	transition StatusTransition
	reason     string
}

// decide 状态转换表：只允许 pending 进入终态
//
// 超时清理关闭的订单没有经过网关确认，网关随后推送的支付成功或失败仍然生效。
func decide(order *Order, n *Notification) decision {
	transition, ok := MapGatewayStatus(n.Status)
	if !ok {
		return decision{outcome: constants.OutcomeIgnored, reason: "unknown gateway status " + n.Status}
	}

	incoming := strings.TrimSpace(n.TransactionID)
	if order.TransactionID != "" && incoming != "" && order.TransactionID != incoming {
		return decision{
			outcome: constants.OutcomeConflict,
			reason:  "order bound to transaction " + order.TransactionID + ", got " + incoming,
		}
	}

	switch order.PaymentStatus {
	case constants.PaymentStatusPending, "":
		return decision{outcome: constants.OutcomeApplied, transition: transition}
	case transition.PaymentStatus:
		return decision{outcome: constants.OutcomeDuplicate, transition: transition}
	case constants.PaymentStatusExpired:
		if order.LocallyExpired {
			return decision{outcome: constants.OutcomeApplied, transition: transition}
		}
		fallthrough
	default:
		return decision{
			outcome: constants.OutcomeConflict,
			reason:  "order already " + order.PaymentStatus + ", got " + transition.PaymentStatus,
		}
	}
}

// apply 在行锁内修改订单
func apply(order *Order, n *Notification, t StatusTransition) {
	order.PaymentStatus = t.PaymentStatus
	order.Status = t.Status
	order.LocallyExpired = false
	if t.FulfillmentStatus != "" {
		order.FulfillmentStatus = t.FulfillmentStatus
	}
	if order.TransactionID == "" {
		order.TransactionID = strings.TrimSpace(n.TransactionID)
	}
	if len(n.Products) > 0 {
		order.Items = itemsFromProducts(n.Products)
		order.Amount = n.Amount
		order.TotalQuantity = totalQuantity(order.Items)
	}
	if n.Currency != "" && order.Currency == "" {
		order.Currency = n.Currency
	}
}

func itemsFromProducts(products []GatewayProduct) []OrderItem {
	items := make([]OrderItem, 0, len(products))
	for _, p := range products {
		items = append(items, OrderItem{
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  p.Quantity,
			Image:     p.Image,
			ItemID:    p.ID,
		})
	}
	return items
}
