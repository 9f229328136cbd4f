package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 启动配置
type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Gateway  *Gateway  `json:"gateway"`
	Site     *Site     `json:"site"`
	Auth     *Auth     `json:"auth"`
	Realtime *Realtime `json:"realtime"`
	Topup    *Topup    `json:"topup"`
}

// Server 服务配置
type Server struct {
	Http *Server_HTTP `json:"http"`
}

// Server_HTTP HTTP 监听配置
type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data 数据源配置
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_RocketMQ `json:"rocketmq"`
}

// Data_Database 数据库配置
type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Data_Redis Redis 配置，Addr 为空时禁用缓存和分布式锁
type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

// Data_RocketMQ 确认回调队列配置
type Data_RocketMQ struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int32    `json:"retry_times"`
}

// Gateway 支付网关配置
type Gateway struct {
	BaseURL        string    `json:"base_url"`
	ApiKey         string    `json:"api_key"`
	SecretKey      string    `json:"secret_key"`
	ConfirmTimeout *Duration `json:"confirm_timeout"`
	RequestTimeout *Duration `json:"request_timeout"`
}

// Site 站点配置（用于生成回调地址）
type Site struct {
	BaseURL string `json:"base_url"`
}

// Auth 管理员认证配置
type Auth struct {
	JwtSecret     string    `json:"jwt_secret"`
	AdminUsername string    `json:"admin_username"`
	AdminPassword string    `json:"admin_password"`
	TokenTtl      *Duration `json:"token_ttl"`
}

// Realtime 实时推送配置
type Realtime struct {
	AllowedOrigins []string `json:"allowed_origins"`
	SendBuffer     int      `json:"send_buffer"`
}

// Topup 订单业务配置
type Topup struct {
	PendingOrderTtl *Duration `json:"pending_order_ttl"`
	DefaultCurrency string    `json:"default_currency"`
}

// Duration 支持 "10s" 形式的时长配置
type Duration struct {
	time.Duration
}

// AsDuration 与 durationpb 保持一致的取值方法，nil 安全
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

// NewDuration 构造 Duration
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// UnmarshalJSON 解析字符串或纳秒数
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	return nil
}

// MarshalJSON 输出字符串形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
