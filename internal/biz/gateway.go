package biz

import "context"

// GatewayClient 支付网关客户端接口
type GatewayClient interface {
	// CreateCheckout 在网关登记支付，载荷已加密
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutReply, error)
	// ConfirmTransaction 回调网关确认交易
	ConfirmTransaction(ctx context.Context, transactionID string) error
	// GetTransactionStatus 查询网关侧交易状态（原始状态字符串，如 SUCCESS）
	GetTransactionStatus(ctx context.Context, transactionID string) (string, error)
}

// GatewayProduct 网关载荷中的商品行
type GatewayProduct struct {
	ID        string  `json:"id,omitempty"`
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

// CheckoutPayload 发起支付时加密发送给网关的内容
type CheckoutPayload struct {
	Products   []GatewayProduct       `json:"products"`
	Currency   string                 `json:"currency"`
	Metadata   map[string]interface{} `json:"metadata"`
	WebhookURL string                 `json:"webhookUrl"`
	SuccessURL string                 `json:"successUrl"`
	CancelURL  string                 `json:"cancelUrl"`
}

// CheckoutRequest 创建支付请求
type CheckoutRequest struct {
	Payload string `json:"payload"` // 加密后的 CheckoutPayload
}

// CheckoutReply 创建支付响应
type CheckoutReply struct {
	TransactionID string  `json:"transactionId"`
	RedirectURL   string  `json:"redirectUrl"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CreatedAt     string  `json:"createdAt"`
}
