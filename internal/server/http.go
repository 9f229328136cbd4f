package server

import (
	"topup-service/internal/conf"
	"topup-service/internal/realtime"
	"topup-service/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(
	c *conf.Bootstrap,
	notification *service.NotificationService,
	order *service.OrderService,
	auth *service.AuthService,
	verifier AdminVerifier,
	hub *realtime.Hub,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
			selector.Server(AdminAuth(verifier)).Match(adminOperation).Build(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Server.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)

	service.RegisterNotificationHTTPServer(srv, notification)
	service.RegisterOrderHTTPServer(srv, order)
	service.RegisterAuthHTTPServer(srv, auth)
	srv.Handle("/ws", hub)
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}
