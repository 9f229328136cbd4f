package biz

import (
	"context"
	"time"

	"topup-service/internal/constants"
	topupErrors "topup-service/internal/errors"
	"topup-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// ReconcileOptions 对账选项
type ReconcileOptions struct {
	Source         string                 // 通知来源：webhook/confirm/legacy
	AllowSynthesis bool                   // 未找到订单时是否根据通知创建
	Raw            map[string]interface{} // 解密后的原始字段，写入通知日志
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	Outcome string // constants.Outcome*
	Order   *Order // 匹配、更新或创建后的订单；未找到时为 nil
	Reason  string // 冲突或忽略原因
}

// ReconcileUseCase 网关通知对账：匹配订单、状态转换、推送、确认回调
type ReconcileUseCase struct {
	repo       OrderRepo
	lookup     LookupChain
	locker     Locker
	events     *OrderEvents
	dispatcher ConfirmDispatcher
	logs       NotificationLogRepo
	conf       *TopupConfig
	log        *log.Helper
	metrics    *metrics.TopupMetrics
}

// NewReconcileUseCase 创建对账 UseCase
func NewReconcileUseCase(
	repo OrderRepo,
	locker Locker,
	events *OrderEvents,
	dispatcher ConfirmDispatcher,
	logs NotificationLogRepo,
	conf *TopupConfig,
	logger log.Logger,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		repo:       repo,
		lookup:     DefaultLookupChain,
		locker:     locker,
		events:     events,
		dispatcher: dispatcher,
		logs:       logs,
		conf:       conf,
		log:        log.NewHelper(logger),
		metrics:    metrics.GetMetrics(),
	}
}

// Reconcile 处理一条已解密的网关通知，重复调用是安全的
//
// 返回 error 时订单未被修改（StorageError 等），webhook 调用方应让网关重试。
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, n *Notification, opts ReconcileOptions) (*ReconcileResult, error) {
	if n == nil {
		return nil, topupErrors.ErrorInvalidArgument("notification is required")
	}
	if opts.Source == "" {
		opts.Source = constants.NotificationSourceWebhook
	}

	start := time.Now()
	result, err := uc.reconcile(ctx, n, opts)
	uc.metrics.ReconcileDuration.WithLabelValues(opts.Source).Observe(time.Since(start).Seconds())

	outcome := constants.OutcomeFailed
	if err == nil {
		outcome = result.Outcome
	}
	uc.metrics.NotificationTotal.WithLabelValues(opts.Source, outcome).Inc()
	uc.saveLog(ctx, n, opts, result, err)

	if err != nil {
		uc.log.Errorf("reconcile failed: source=%s, transaction_id=%s, order_ref=%s, error=%v",
			opts.Source, n.TransactionID, n.OrderRef(), err)
		return nil, err
	}
	return result, nil
}

func (uc *ReconcileUseCase) reconcile(ctx context.Context, n *Notification, opts ReconcileOptions) (*ReconcileResult, error) {
	keys := n.LookupKeys()
	if keys.TransactionID == "" && keys.OrderRef == "" {
		uc.log.Warnf("notification without transaction id or order ref: source=%s", opts.Source)
		return &ReconcileResult{Outcome: constants.OutcomeNotFound}, nil
	}

	unlock, err := uc.locker.Lock(ctx, n.LockKey())
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := uc.lookup.Find(ctx, uc.repo, keys)
	if err != nil {
		return nil, err
	}
	if order == nil {
		if !opts.AllowSynthesis || keys.TransactionID == "" {
			uc.log.Warnf("order not found: source=%s, transaction_id=%s, order_ref=%s",
				opts.Source, keys.TransactionID, keys.OrderRef)
			return &ReconcileResult{Outcome: constants.OutcomeNotFound}, nil
		}
		return uc.synthesize(ctx, n, opts)
	}

	return uc.transition(ctx, order.OrderID, n, opts)
}

// transition 在行锁内重新判定并执行状态转换
func (uc *ReconcileUseCase) transition(ctx context.Context, orderID string, n *Notification, opts ReconcileOptions) (*ReconcileResult, error) {
	var d decision
	updated, err := uc.repo.UpdateOrder(ctx, orderID, func(cur *Order) (bool, error) {
		d = decide(cur, n)
		if d.outcome != constants.OutcomeApplied {
			return false, nil
		}
		apply(cur, n, d.transition)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return &ReconcileResult{Outcome: constants.OutcomeNotFound}, nil
	}

	result := &ReconcileResult{Outcome: d.outcome, Order: updated, Reason: d.reason}
	switch d.outcome {
	case constants.OutcomeApplied:
		uc.log.Infof("order updated: source=%s, order_id=%s, transaction_id=%s, payment_status=%s",
			opts.Source, updated.OrderID, updated.TransactionID, updated.PaymentStatus)
		uc.events.Emit(ctx, updated)
		if updated.PaymentStatus == constants.PaymentStatusPaid {
			uc.dispatchConfirm(ctx, updated)
		}
	case constants.OutcomeDuplicate:
		uc.log.Infof("duplicate notification: source=%s, order_id=%s, payment_status=%s",
			opts.Source, updated.OrderID, updated.PaymentStatus)
	case constants.OutcomeConflict:
		uc.metrics.TransitionConflictTotal.Inc()
		uc.log.Warnf("conflicting notification ignored: source=%s, order_id=%s, reason=%s",
			opts.Source, updated.OrderID, d.reason)
	case constants.OutcomeIgnored:
		uc.log.Warnf("notification ignored: source=%s, order_id=%s, reason=%s",
			opts.Source, updated.OrderID, d.reason)
	}
	return result, nil
}

// synthesize 未找到订单时根据通知创建订单
func (uc *ReconcileUseCase) synthesize(ctx context.Context, n *Notification, opts ReconcileOptions) (*ReconcileResult, error) {
	order := uc.orderFromNotification(n)
	created, err := uc.repo.CreateOrder(ctx, order)
	if err != nil {
		// orderId 已被并发创建，回到正常的状态转换流程
		if topupErrors.IsConflict(err) {
			return uc.transition(ctx, order.OrderID, n, opts)
		}
		return nil, err
	}

	uc.metrics.OrderCreatedTotal.WithLabelValues(constants.OrderOriginSynthesized).Inc()
	uc.log.Infof("order synthesized from notification: source=%s, order_id=%s, transaction_id=%s, payment_status=%s",
		opts.Source, created.OrderID, created.TransactionID, created.PaymentStatus)
	uc.events.Emit(ctx, created)
	if created.PaymentStatus == constants.PaymentStatusPaid {
		uc.dispatchConfirm(ctx, created)
	}
	return &ReconcileResult{Outcome: constants.OutcomeCreated, Order: created}, nil
}

func (uc *ReconcileUseCase) orderFromNotification(n *Notification) *Order {
	orderID := n.OrderRef()
	if orderID == "" || isNumeric(orderID) {
		orderID = NewOrderID(timeNow())
	}

	currency := n.Currency
	if currency == "" {
		currency = uc.conf.DefaultCurrency
	}

	items := itemsFromProducts(n.Products)
	price := decimal.NewFromFloat(n.Amount)
	if len(items) > 0 {
		price = decimal.Zero
		for _, item := range items {
			price = price.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	order := &Order{
		OrderID:           orderID,
		TransactionID:     n.TransactionID,
		GameID:            n.Meta("gameId"),
		GameName:          n.Meta("gameName"),
		PackageID:         n.Meta("packageId"),
		PackageName:       n.Meta("packageName"),
		UserID:            n.Meta("userId"),
		ServerID:          n.Meta("serverId"),
		Amount:            n.Amount,
		Price:             price.Round(2).InexactFloat64(),
		Currency:          currency,
		PaymentStatus:     constants.PaymentStatusPending,
		FulfillmentStatus: constants.FulfillmentStatusPending,
		Status:            constants.OrderStatusPending,
		Items:             items,
		TotalQuantity:     totalQuantity(items),
	}
	if t, ok := MapGatewayStatus(n.Status); ok {
		order.PaymentStatus = t.PaymentStatus
		order.Status = t.Status
		if t.FulfillmentStatus != "" {
			order.FulfillmentStatus = t.FulfillmentStatus
		}
	}
	return order
}

func (uc *ReconcileUseCase) dispatchConfirm(ctx context.Context, order *Order) {
	if uc.dispatcher == nil || order.TransactionID == "" {
		return
	}
	if err := uc.dispatcher.DispatchConfirm(ctx, order.TransactionID, order.OrderID); err != nil {
		uc.log.Warnf("dispatch confirm failed: transaction_id=%s, order_id=%s, error=%v",
			order.TransactionID, order.OrderID, err)
	}
}

func (uc *ReconcileUseCase) saveLog(ctx context.Context, n *Notification, opts ReconcileOptions, result *ReconcileResult, err error) {
	if uc.logs == nil {
		return
	}
	entry := &NotificationLog{
		Source:        opts.Source,
		TransactionID: n.TransactionID,
		OrderRef:      n.OrderRef(),
		Payload:       opts.Raw,
		Result:        NotificationResultFailed,
		ReceivedAt:    timeNow(),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Result = notificationResult(result.Outcome)
		entry.Error = result.Reason
		if result.Order != nil {
			entry.OrderID = result.Order.OrderID
		}
	}
	if saveErr := uc.logs.SaveNotificationLog(ctx, entry); saveErr != nil {
		uc.log.Warnf("save notification log failed: source=%s, transaction_id=%s, error=%v",
			opts.Source, n.TransactionID, saveErr)
	}
}

// RecordRejected 记录未能进入对账流程的通知（解密失败、校验失败等）
func (uc *ReconcileUseCase) RecordRejected(ctx context.Context, source string, raw map[string]interface{}, cause error) {
	if source == "" {
		source = constants.NotificationSourceWebhook
	}
	if topupErrors.IsDecryption(cause) {
		uc.metrics.DecryptFailedTotal.WithLabelValues(source).Inc()
	}
	uc.metrics.NotificationTotal.WithLabelValues(source, constants.OutcomeFailed).Inc()
	if uc.logs == nil {
		return
	}
	entry := &NotificationLog{
		Source:     source,
		Payload:    raw,
		Result:     NotificationResultFailed,
		ReceivedAt: timeNow(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := uc.logs.SaveNotificationLog(ctx, entry); err != nil {
		uc.log.Warnf("save notification log failed: source=%s, error=%v", source, err)
	}
}
