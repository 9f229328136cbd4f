package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/conf"
	"topup-service/internal/constants"
	topupErrors "topup-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// GatewayClient 支付网关客户端接口（实现 biz.GatewayClient）
type GatewayClient = biz.GatewayClient

// gatewayClient 支付网关 HTTP 客户端实现
type gatewayClient struct {
	client *http.Client
	prefix string // base_url 中的路径前缀
	log    *log.Helper
}

// gatewayEnvelope 网关响应外层结构
type gatewayEnvelope struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewGatewayClient 创建支付网关客户端
func NewGatewayClient(c *conf.Bootstrap, logger log.Logger) (GatewayClient, func(), error) {
	if c.Gateway == nil || c.Gateway.BaseURL == "" {
		return nil, nil, topupErrors.ErrorConfiguration("gateway base url is not configured")
	}
	endpoint, prefix, err := splitBaseURL(c.Gateway.BaseURL)
	if err != nil {
		return nil, nil, topupErrors.ErrorConfiguration("invalid gateway base url").WithCause(err)
	}

	timeout := 15 * time.Second // 默认值
	if t := c.Gateway.RequestTimeout.AsDuration(); t > 0 {
		timeout = t
	}

	client, err := http.NewClient(
		context.Background(),
		http.WithEndpoint(endpoint),
		http.WithTimeout(timeout),
		http.WithResponseDecoder(decodeGatewayResponse),
		http.WithMiddleware(
			recovery.Recovery(),
			apiKeyMiddleware(strings.TrimSpace(c.Gateway.ApiKey)),
		),
	)
	if err != nil {
		return nil, nil, topupErrors.ErrorConfiguration("create gateway client failed").WithCause(err)
	}

	logHelper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logHelper.Warnf("close gateway client failed: %v", err)
		}
	}
	return &gatewayClient{
		client: client,
		prefix: prefix,
		log:    logHelper,
	}, cleanup, nil
}

// CreateCheckout 登记支付（POST /api/checkout）
func (c *gatewayClient) CreateCheckout(ctx context.Context, req *biz.CheckoutRequest) (*biz.CheckoutReply, error) {
	var env gatewayEnvelope
	if err := c.client.Invoke(ctx, nethttp.MethodPost, c.path("/api/checkout"), req, &env); err != nil {
		c.log.Errorf("CreateCheckout failed: %v", err)
		return nil, topupErrors.ErrorGateway("gateway checkout failed").WithCause(err)
	}

	reply := &biz.CheckoutReply{}
	body := env.Data
	if len(body) == 0 || string(body) == "null" {
		return nil, topupErrors.ErrorGateway("gateway checkout returned no data")
	}
	if err := json.Unmarshal(body, reply); err != nil {
		return nil, topupErrors.ErrorGateway("gateway checkout returned malformed data").WithCause(err)
	}
	if reply.TransactionID == "" || reply.RedirectURL == "" {
		return nil, topupErrors.ErrorGateway("gateway checkout returned incomplete data")
	}
	return reply, nil
}

// ConfirmTransaction 确认交易（POST /checkout/{id}/confirm），响应只看状态码
func (c *gatewayClient) ConfirmTransaction(ctx context.Context, transactionID string) error {
	path := c.path(fmt.Sprintf("/checkout/%s/confirm", url.PathEscape(transactionID)))
	if err := c.client.Invoke(ctx, nethttp.MethodPost, path, nil, nil); err != nil {
		return topupErrors.ErrorOutboundConfirm("gateway confirm failed").WithCause(err)
	}
	return nil
}

// GetTransactionStatus 查询交易状态（GET /api/transaction/{id}）
func (c *gatewayClient) GetTransactionStatus(ctx context.Context, transactionID string) (string, error) {
	path := c.path(fmt.Sprintf("/api/transaction/%s", url.PathEscape(transactionID)))
	var env gatewayEnvelope
	if err := c.client.Invoke(ctx, nethttp.MethodGet, path, nil, &env); err != nil {
		return "", topupErrors.ErrorGateway("gateway transaction lookup failed").WithCause(err)
	}
	if env.Status != "" {
		return env.Status, nil
	}
	var data struct {
		Status string `json:"status"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", topupErrors.ErrorGateway("gateway transaction lookup returned malformed data").WithCause(err)
		}
	}
	return data.Status, nil
}

func (c *gatewayClient) path(p string) string {
	return c.prefix + p
}

// apiKeyMiddleware 为每个网关请求添加 X-API-Key
func apiKeyMiddleware(apiKey string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromClientContext(ctx); ok && apiKey != "" {
				tr.RequestHeader().Set(constants.GatewayAPIKeyHeader, apiKey)
			}
			return handler(ctx, req)
		}
	}
}

// decodeGatewayResponse 允许空响应体和 nil reply（确认接口不关心响应内容）
func decodeGatewayResponse(ctx context.Context, res *nethttp.Response, v interface{}) error {
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if v == nil || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// splitBaseURL 拆分为 scheme://host 和路径前缀
func splitBaseURL(baseURL string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("base url must be absolute: %q", baseURL)
	}
	return u.Scheme + "://" + u.Host, strings.TrimRight(u.Path, "/"), nil
}
