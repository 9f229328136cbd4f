package biz

import (
	"strings"
	"time"

	"topup-service/internal/conf"
	"topup-service/internal/constants"
	"topup-service/internal/crypto"
	topupErrors "topup-service/internal/errors"
)

// TopupConfig 充值业务配置
type TopupConfig struct {
	SecretKey       string        // 网关载荷加解密密钥（64 位十六进制）
	APIKey          string        // 网关 API Key
	SiteBaseURL     string        // 站点地址，用于生成回调地址
	DefaultCurrency string        // 默认币种
	PendingOrderTTL time.Duration // 待支付订单超时时间
	ConfirmTimeout  time.Duration // 网关确认回调超时时间
}

// NewTopupConfig 从配置创建 TopupConfig
func NewTopupConfig(c *conf.Bootstrap) *TopupConfig {
	config := &TopupConfig{
		DefaultCurrency: constants.DefaultCurrency, // 默认值
		PendingOrderTTL: 24 * time.Hour,            // 默认值
		ConfirmTimeout:  10 * time.Second,          // 默认值
		SiteBaseURL:     "http://localhost:3000",
	}
	if c.Gateway != nil {
		config.SecretKey = strings.TrimSpace(c.Gateway.SecretKey)
		config.APIKey = strings.TrimSpace(c.Gateway.ApiKey)
		if timeout := c.Gateway.ConfirmTimeout.AsDuration(); timeout > 0 {
			config.ConfirmTimeout = timeout
		}
	}
	if c.Site != nil && c.Site.BaseURL != "" {
		config.SiteBaseURL = strings.TrimRight(c.Site.BaseURL, "/")
	}
	if c.Topup != nil {
		if c.Topup.DefaultCurrency != "" {
			config.DefaultCurrency = c.Topup.DefaultCurrency
		}
		if ttl := c.Topup.PendingOrderTtl.AsDuration(); ttl > 0 {
			config.PendingOrderTTL = ttl
		}
	}
	return config
}

// CheckSecretKey 校验解密密钥，缺失或格式错误时返回 ConfigurationError
func (c *TopupConfig) CheckSecretKey() error {
	if c.SecretKey == "" {
		return topupErrors.ErrorConfiguration("gateway secret key is not configured")
	}
	_, err := crypto.ParseKey(c.SecretKey)
	return err
}

// CheckAPIKey 校验网关 API Key
func (c *TopupConfig) CheckAPIKey() error {
	if c.APIKey == "" {
		return topupErrors.ErrorConfiguration("gateway api key is not configured")
	}
	return nil
}
