package constants

// 时间格式常量
const (
	// TimeFormatDay 日期格式 (YYYY-MM-DD)
	TimeFormatDay = "2006-01-02"
)

// Redis Key 前缀常量
const (
	// RedisKeyOrder 订单缓存 key 前缀
	RedisKeyOrder = "topup:order:"
	// RedisKeyReconcileLock 对账锁 key 前缀
	RedisKeyReconcileLock = "topup:reconcile:lock:"
)

// 支付状态常量
const (
	// PaymentStatusPending 待支付
	PaymentStatusPending = "pending"
	// PaymentStatusPaid 已支付
	PaymentStatusPaid = "paid"
	// PaymentStatusFailed 支付失败
	PaymentStatusFailed = "failed"
	// PaymentStatusExpired 已过期
	PaymentStatusExpired = "expired"
)

// 履约状态常量
const (
	// FulfillmentStatusPending 待发货（已支付时表示可以发货）
	FulfillmentStatusPending = "pending"
	// FulfillmentStatusDelivered 已到账
	FulfillmentStatusDelivered = "delivered"
	// FulfillmentStatusFailed 发货失败
	FulfillmentStatusFailed = "failed"
)

// 订单状态常量（部分网关流程使用的粗粒度状态）
const (
	// OrderStatusPending 待处理
	OrderStatusPending = "pending"
	// OrderStatusCompleted 已完成
	OrderStatusCompleted = "completed"
	// OrderStatusFailed 失败
	OrderStatusFailed = "failed"
	// OrderStatusExpired 过期
	OrderStatusExpired = "expired"
)

// 网关通知状态常量
const (
	// GatewayStatusSuccess 支付成功
	GatewayStatusSuccess = "SUCCESS"
	// GatewayStatusFailed 支付失败
	GatewayStatusFailed = "FAILED"
	// GatewayStatusExpired 支付过期
	GatewayStatusExpired = "EXPIRED"
)

// 通知来源常量（用于日志和指标）
const (
	// NotificationSourceWebhook 网关推送
	NotificationSourceWebhook = "webhook"
	// NotificationSourceConfirm 浏览器跳转确认
	NotificationSourceConfirm = "confirm"
	// NotificationSourceLegacy 旧版未加密推送
	NotificationSourceLegacy = "legacy"
)

// 对账结果常量
const (
	// OutcomeApplied 状态已变更
	OutcomeApplied = "applied"
	// OutcomeCreated 未找到订单，已根据通知创建
	OutcomeCreated = "created"
	// OutcomeDuplicate 重复通知，未变更
	OutcomeDuplicate = "duplicate"
	// OutcomeConflict 与已有终态或交易号冲突，未变更
	OutcomeConflict = "conflict"
	// OutcomeIgnored 无法识别的网关状态
	OutcomeIgnored = "ignored"
	// OutcomeNotFound 未找到订单
	OutcomeNotFound = "not_found"
	// OutcomeFailed 处理失败
	OutcomeFailed = "failed"
)

// 实时推送房间和事件常量
const (
	// RoomAdmin 管理员广播房间
	RoomAdmin = "admin"
	// RoomOrderPrefix 单个订单房间前缀
	RoomOrderPrefix = "order-"

	// EventJoinAdmin 客户端加入管理员房间
	EventJoinAdmin = "join-admin"
	// EventJoinOrder 客户端加入订单房间
	EventJoinOrder = "join-order"
	// EventLeaveOrder 客户端离开订单房间
	EventLeaveOrder = "leave-order"
	// EventOrderUpdate 订单更新
	EventOrderUpdate = "order-update"
	// EventDashboardUpdate 仪表盘更新
	EventDashboardUpdate = "dashboard-update"
	// EventAdminJoined 加入管理员房间的应答
	EventAdminJoined = "admin-joined"
)

// 订单ID前缀常量
const (
	// OrderIDPrefix 订单号前缀
	OrderIDPrefix = "ORD"
)

// 订单来源常量（用于指标）
const (
	// OrderOriginCheckout 下单创建
	OrderOriginCheckout = "checkout"
	// OrderOriginSynthesized 根据网关通知补建
	OrderOriginSynthesized = "synthesized"
)

// 默认值常量
const (
	// DefaultCurrency 默认币种
	DefaultCurrency = "USD"
	// GatewayAPIKeyHeader 网关鉴权请求头
	GatewayAPIKeyHeader = "X-API-Key"
)
