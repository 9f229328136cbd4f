package biz

import (
	"context"
	"time"

	"topup-service/internal/constants"
)

// 通知日志处理结果
const (
	NotificationResultReceived = "received"
	NotificationResultHandled  = "handled"
	NotificationResultNotFound = "not_found"
	NotificationResultIgnored  = "ignored"
	NotificationResultConflict = "conflict"
	NotificationResultFailed   = "failed"
)

// NotificationLog 入站通知审计记录
type NotificationLog struct {
	Source        string
	TransactionID string
	OrderRef      string
	OrderID       string // 匹配或创建的订单号
	Payload       map[string]interface{}
	Result        string
	Error         string
	ReceivedAt    time.Time
}

// NotificationLogRepo 通知日志数据层接口（定义在 biz 层）
type NotificationLogRepo interface {
	SaveNotificationLog(ctx context.Context, entry *NotificationLog) error
}

// notificationResult 对账结果映射为日志结果
func notificationResult(outcome string) string {
	switch outcome {
	case constants.OutcomeApplied, constants.OutcomeCreated, constants.OutcomeDuplicate:
		return NotificationResultHandled
	case constants.OutcomeNotFound:
		return NotificationResultNotFound
	case constants.OutcomeIgnored:
		return NotificationResultIgnored
	case constants.OutcomeConflict:
		return NotificationResultConflict
	case constants.OutcomeFailed:
		return NotificationResultFailed
	default:
		return NotificationResultReceived
	}
}
