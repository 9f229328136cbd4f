package service

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"strings"

	"topup-service/internal/biz"
	"topup-service/internal/constants"
	topupErrors "topup-service/internal/errors"

	pkgUtils "github.com/gaoyong06/go-pkg/utils"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// maxNotificationBody 通知请求体大小上限
const maxNotificationBody = 1 << 20

// ingressReply 通知入口的应答，状态码与响应体由对账结果决定
type ingressReply struct {
	status int
	body   map[string]interface{}
}

func reply(status int, body map[string]interface{}) *ingressReply {
	return &ingressReply{status: status, body: body}
}

// legacyNotification 旧版未加密的推送格式
type legacyNotification struct {
	ID       string                 `json:"id"`
	Status   string                 `json:"status"`
	Amount   float64                `json:"amount"`
	Currency string                 `json:"currency"`
	Metadata map[string]interface{} `json:"metadata"`
}

// NotificationService 支付网关通知入口（webhook 推送和浏览器跳转确认）
type NotificationService struct {
	reconciler *biz.ReconcileUseCase
	confirm    *biz.ConfirmUseCase
	conf       *biz.TopupConfig
	log        *log.Helper
}

// NewNotificationService 创建 NotificationService
func NewNotificationService(reconciler *biz.ReconcileUseCase, confirm *biz.ConfirmUseCase, c *biz.TopupConfig, logger log.Logger) *NotificationService {
	return &NotificationService{
		reconciler: reconciler,
		confirm:    confirm,
		conf:       c,
		log:        log.NewHelper(logger),
	}
}

// Webhook 处理网关推送（POST /webhook、POST /callback）
//
// 除 JSON 格式错误和密钥未配置外始终返回 200，存储不可用时返回 503 让网关重试。
func (s *NotificationService) Webhook(ctx http.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxNotificationBody))
	if err != nil {
		return ctx.JSON(nethttp.StatusBadRequest, map[string]interface{}{"success": false, "message": "Invalid request body"})
	}

	http.SetOperation(ctx, OperationNotificationWebhook)
	h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.handleWebhook(ctx, req.([]byte)), nil
	})
	out, err := h(ctx, body)
	if err != nil {
		return err
	}
	r := out.(*ingressReply)
	return ctx.JSON(r.status, r.body)
}

func (s *NotificationService) handleWebhook(ctx context.Context, body []byte) *ingressReply {
	// 网关或客户端断开不应中断已经开始的对账
	ctx = context.WithoutCancel(ctx)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		s.log.Warnf("webhook malformed json: client_ip=%s, error=%v", pkgUtils.GetClientIP(ctx), err)
		return reply(nethttp.StatusBadRequest, map[string]interface{}{"success": false, "message": "Invalid JSON"})
	}

	payload, ok := raw["payload"]
	if !ok {
		return s.handleLegacy(ctx, body)
	}
	var blob string
	if err := json.Unmarshal(payload, &blob); err != nil || strings.TrimSpace(blob) == "" {
		s.reconciler.RecordRejected(ctx, constants.NotificationSourceWebhook, nil,
			topupErrors.ErrorDecryption("payload must be a non-empty string"))
		return reply(nethttp.StatusOK, map[string]interface{}{"success": false, "message": "Invalid payload"})
	}

	if err := s.conf.CheckSecretKey(); err != nil {
		s.log.Errorf("webhook rejected, secret key not configured: %v", err)
		return configurationReply()
	}

	n, decrypted, err := biz.DecodeNotification(blob, s.conf.SecretKey)
	if err != nil {
		if topupErrors.IsConfiguration(err) {
			return configurationReply()
		}
		s.log.Warnf("webhook payload rejected: client_ip=%s, error=%v", pkgUtils.GetClientIP(ctx), err)
		s.reconciler.RecordRejected(ctx, constants.NotificationSourceWebhook, decrypted, err)
		return reply(nethttp.StatusOK, map[string]interface{}{"success": false, "message": "Invalid payload"})
	}

	result, err := s.reconciler.Reconcile(ctx, n, biz.ReconcileOptions{
		Source:         constants.NotificationSourceWebhook,
		AllowSynthesis: true,
		Raw:            decrypted,
	})
	if err != nil {
		return retryableReply(err)
	}
	return webhookReply(n, result)
}

// handleLegacy 旧版推送没有加密，终态必须先向网关核实，且从不补建订单
func (s *NotificationService) handleLegacy(ctx context.Context, body []byte) *ingressReply {
	var legacy legacyNotification
	if err := json.Unmarshal(body, &legacy); err != nil {
		return reply(nethttp.StatusBadRequest, map[string]interface{}{"success": false, "message": "Invalid JSON"})
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)

	n := &biz.Notification{
		TransactionID: strings.TrimSpace(legacy.ID),
		Status:        biz.NormalizeLegacyStatus(legacy.Status),
		Amount:        legacy.Amount,
		Currency:      legacy.Currency,
		Metadata:      legacy.Metadata,
	}
	s.log.Infof("legacy notification received: transaction_id=%s, status=%s, client_ip=%s",
		n.TransactionID, n.Status, pkgUtils.GetClientIP(ctx))

	// 明文通知不可信，任何会推进订单状态的推送都要网关确认交易号和状态一致
	if _, ok := biz.MapGatewayStatus(n.Status); ok {
		verified, err := s.confirm.VerifyTransactionStatus(ctx, n.TransactionID, n.Status)
		if err != nil {
			return reply(nethttp.StatusServiceUnavailable, map[string]interface{}{"success": false, "retryable": true})
		}
		if !verified {
			s.reconciler.RecordRejected(ctx, constants.NotificationSourceLegacy, raw,
				topupErrors.ErrorUnauthorized("legacy notification could not be verified"))
			return reply(nethttp.StatusOK, map[string]interface{}{"success": false, "message": "Transaction not verified"})
		}
	}

	result, err := s.reconciler.Reconcile(ctx, n, biz.ReconcileOptions{
		Source: constants.NotificationSourceLegacy,
		Raw:    raw,
	})
	if err != nil {
		return retryableReply(err)
	}
	return webhookReply(n, result)
}

func webhookReply(n *biz.Notification, result *biz.ReconcileResult) *ingressReply {
	switch result.Outcome {
	case constants.OutcomeCreated:
		return reply(nethttp.StatusOK, map[string]interface{}{
			"success": true,
			"message": "New order created",
			"orderId": result.Order.OrderID,
		})
	case constants.OutcomeNotFound:
		return reply(nethttp.StatusOK, map[string]interface{}{
			"success":       false,
			"message":       "Order not found, but webhook acknowledged",
			"transactionId": n.TransactionID,
		})
	default:
		return reply(nethttp.StatusOK, map[string]interface{}{"success": true})
	}
}

func configurationReply() *ingressReply {
	return reply(nethttp.StatusInternalServerError, map[string]interface{}{"success": false, "message": "Server configuration error"})
}

func retryableReply(err error) *ingressReply {
	if topupErrors.IsConfiguration(err) {
		return configurationReply()
	}
	if topupErrors.IsStorage(err) {
		return reply(nethttp.StatusServiceUnavailable, map[string]interface{}{"success": false, "retryable": true})
	}
	return reply(nethttp.StatusInternalServerError, map[string]interface{}{"success": false, "retryable": true})
}

// Confirm 处理浏览器跳转确认（GET /confirm?payload=...），返回订单的展示字段
func (s *NotificationService) Confirm(ctx http.Context) error {
	blob := strings.TrimSpace(ctx.Query().Get("payload"))

	http.SetOperation(ctx, OperationNotificationConfirm)
	h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.handleConfirm(ctx, req.(string)), nil
	})
	out, err := h(ctx, blob)
	if err != nil {
		return err
	}
	r := out.(*ingressReply)
	return ctx.JSON(r.status, r.body)
}

func (s *NotificationService) handleConfirm(ctx context.Context, blob string) *ingressReply {
	ctx = context.WithoutCancel(ctx)

	if blob == "" {
		return reply(nethttp.StatusBadRequest, map[string]interface{}{"success": false, "message": "Missing payload"})
	}
	if err := s.conf.CheckSecretKey(); err != nil {
		s.log.Errorf("confirm rejected, secret key not configured: %v", err)
		return configurationReply()
	}

	n, decrypted, err := biz.DecodeNotification(blob, s.conf.SecretKey)
	if err != nil {
		if topupErrors.IsConfiguration(err) {
			return configurationReply()
		}
		s.log.Warnf("confirm payload rejected: client_ip=%s, error=%v", pkgUtils.GetClientIP(ctx), err)
		s.reconciler.RecordRejected(ctx, constants.NotificationSourceConfirm, decrypted, err)
		return reply(nethttp.StatusBadRequest, map[string]interface{}{"success": false, "message": "Invalid payload"})
	}

	result, err := s.reconciler.Reconcile(ctx, n, biz.ReconcileOptions{
		Source: constants.NotificationSourceConfirm,
		Raw:    decrypted,
	})
	if err != nil {
		// 用户正在等待跳转结果，存储不可用时返回解密后的原始字段
		return reply(nethttp.StatusOK, notFoundProjection("Order lookup unavailable", decrypted))
	}
	if result.Order == nil {
		return reply(nethttp.StatusOK, notFoundProjection("Order not found", decrypted))
	}
	return reply(nethttp.StatusOK, orderProjection(result.Order))
}

// orderProjection 面向前端的订单字段，不包含内部 ID 和交易号
func orderProjection(o *biz.Order) map[string]interface{} {
	items := o.Items
	if items == nil {
		items = []biz.OrderItem{}
	}
	return map[string]interface{}{
		"success":       true,
		"orderId":       o.OrderID,
		"status":        o.Status,
		"paymentStatus": o.PaymentStatus,
		"amount":        o.Amount,
		"currency":      o.Currency,
		"items":         items,
		"userId":        o.UserID,
		"serverId":      o.ServerID,
		"gameName":      o.GameName,
		"packageName":   o.PackageName,
		"createdAt":     o.CreatedAt,
		"updatedAt":     o.UpdatedAt,
	}
}

func notFoundProjection(message string, decrypted map[string]interface{}) map[string]interface{} {
	body := make(map[string]interface{}, len(decrypted)+2)
	for k, v := range decrypted {
		body[k] = v
	}
	body["success"] = false
	body["message"] = message
	return body
}
