package biz

import (
	"context"
	"sync"
	"time"

	topupErrors "topup-service/internal/errors"
	"topup-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ConfirmDispatcher 确认回调的投递方式（进程内异步或消息队列）
//
// DispatchConfirm 不得阻塞调用方，也不应把回调结果反馈给对账流程。
type ConfirmDispatcher interface {
	DispatchConfirm(ctx context.Context, transactionID, orderID string) error
}

// ConfirmEvent 发送到 RocketMQ 的确认回调消息
type ConfirmEvent struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       string    `json:"order_id,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

// NewConfirmEvent 创建确认回调消息
func NewConfirmEvent(transactionID, orderID string) *ConfirmEvent {
	return &ConfirmEvent{
		TransactionID: transactionID,
		OrderID:       orderID,
		RequestedAt:   timeNow(),
	}
}

// ConfirmUseCase 回调网关确认交易
type ConfirmUseCase struct {
	gateway GatewayClient
	conf    *TopupConfig
	log     *log.Helper
	metrics *metrics.TopupMetrics
}

// NewConfirmUseCase 创建确认回调 UseCase
func NewConfirmUseCase(gateway GatewayClient, conf *TopupConfig, logger log.Logger) *ConfirmUseCase {
	return &ConfirmUseCase{
		gateway: gateway,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Confirm 调用网关确认接口，失败返回 OutboundConfirmError
func (uc *ConfirmUseCase) Confirm(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return topupErrors.ErrorInvalidArgument("transaction id is required")
	}
	if err := uc.conf.CheckAPIKey(); err != nil {
		uc.metrics.ConfirmTotal.WithLabelValues("skipped").Inc()
		uc.log.Warnf("confirm skipped: transaction_id=%s, error=%v", transactionID, err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.conf.ConfirmTimeout)
	defer cancel()

	start := time.Now()
	err := uc.gateway.ConfirmTransaction(ctx, transactionID)
	uc.metrics.ConfirmDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		uc.metrics.ConfirmTotal.WithLabelValues("failed").Inc()
		uc.log.Errorf("confirm transaction failed: transaction_id=%s, error=%v", transactionID, err)
		if topupErrors.IsOutboundConfirm(err) {
			return err
		}
		return topupErrors.ErrorOutboundConfirm("confirm transaction %s failed", transactionID).WithCause(err)
	}

	uc.metrics.ConfirmTotal.WithLabelValues("success").Inc()
	uc.log.Infof("transaction confirmed: transaction_id=%s", transactionID)
	return nil
}

// AsyncConfirmDispatcher 进程内异步投递，使用脱离请求取消的 context
type AsyncConfirmDispatcher struct {
	uc *ConfirmUseCase
	wg sync.WaitGroup
}

// NewAsyncConfirmDispatcher 创建进程内异步投递
func NewAsyncConfirmDispatcher(uc *ConfirmUseCase) *AsyncConfirmDispatcher {
	return &AsyncConfirmDispatcher{uc: uc}
}

// DispatchConfirm 启动 goroutine 执行确认回调，立即返回
func (d *AsyncConfirmDispatcher) DispatchConfirm(ctx context.Context, transactionID, orderID string) error {
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.uc.Confirm(detached, transactionID)
	}()
	return nil
}

// Wait 等待所有已投递的回调结束
func (d *AsyncConfirmDispatcher) Wait() {
	d.wg.Wait()
}

// VerifyTransactionStatus 向网关核实交易状态，用于未加密的旧版回调
func (uc *ConfirmUseCase) VerifyTransactionStatus(ctx context.Context, transactionID, expected string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, uc.conf.ConfirmTimeout)
	defer cancel()

	status, err := uc.gateway.GetTransactionStatus(ctx, transactionID)
	if err != nil {
		uc.log.Warnf("verify transaction failed: transaction_id=%s, error=%v", transactionID, err)
		return false, err
	}
	actual, ok := MapGatewayStatus(status)
	want, _ := MapGatewayStatus(expected)
	return ok && actual.PaymentStatus == want.PaymentStatus, nil
}
