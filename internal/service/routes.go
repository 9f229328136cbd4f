package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationNotificationWebhook = "/topup.v1.NotificationService/Webhook"
	OperationNotificationConfirm = "/topup.v1.NotificationService/Confirm"

	OperationOrderCreateOrder       = "/topup.v1.OrderService/CreateOrder"
	OperationOrderCheckout          = "/topup.v1.OrderService/Checkout"
	OperationOrderGetOrder          = "/topup.v1.OrderService/GetOrder"
	OperationOrderListOrders        = "/topup.v1.OrderService/ListOrders"
	OperationOrderUpdateOrder       = "/topup.v1.OrderService/UpdateOrder"
	OperationOrderGetDashboardStats = "/topup.v1.OrderService/GetDashboardStats"

	OperationAuthLogin  = "/topup.v1.AuthService/Login"
	OperationAuthVerify = "/topup.v1.AuthService/Verify"
)

// AdminOperations 需要管理员令牌的接口
var AdminOperations = map[string]struct{}{
	OperationOrderListOrders:        {},
	OperationOrderUpdateOrder:       {},
	OperationOrderGetDashboardStats: {},
	OperationAuthVerify:             {},
}

// RegisterNotificationHTTPServer 注册网关通知路由
func RegisterNotificationHTTPServer(s *http.Server, srv *NotificationService) {
	r := s.Route("/")
	r.POST("/webhook", srv.Webhook)
	r.POST("/callback", srv.Webhook)
	r.GET("/confirm", srv.Confirm)
}

// RegisterOrderHTTPServer 注册订单和管理端路由
func RegisterOrderHTTPServer(s *http.Server, srv *OrderService) {
	r := s.Route("/")
	r.POST("/api/orders", _OrderService_CreateOrder0_HTTP_Handler(srv))
	r.POST("/api/checkout", _OrderService_Checkout0_HTTP_Handler(srv))
	r.GET("/api/orders/{id}", _OrderService_GetOrder0_HTTP_Handler(srv))
	r.GET("/api/orders", _OrderService_ListOrders0_HTTP_Handler(srv))
	r.PUT("/api/orders/{id}", _OrderService_UpdateOrder0_HTTP_Handler(srv))
	r.GET("/api/dashboard/stats", _OrderService_GetDashboardStats0_HTTP_Handler(srv))
}

// RegisterAuthHTTPServer 注册管理员认证路由
func RegisterAuthHTTPServer(s *http.Server, srv *AuthService) {
	r := s.Route("/")
	r.POST("/api/auth/login", _AuthService_Login0_HTTP_Handler(srv))
	r.GET("/api/auth/verify", _AuthService_Verify0_HTTP_Handler(srv))
}

func _OrderService_CreateOrder0_HTTP_Handler(srv *OrderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderCreateOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CreateOrder(ctx, req.(*OrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(201, out)
	}
}

func _OrderService_Checkout0_HTTP_Handler(srv *OrderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderCheckout)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Checkout(ctx, req.(*OrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _OrderService_GetOrder0_HTTP_Handler(srv *OrderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetOrderRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderGetOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetOrder(ctx, req.(*GetOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _OrderService_ListOrders0_HTTP_Handler(srv *OrderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListOrdersRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderListOrders)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListOrders(ctx, req.(*ListOrdersRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _OrderService_UpdateOrder0_HTTP_Handler(srv *OrderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in UpdateOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderUpdateOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.UpdateOrder(ctx, req.(*UpdateOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _OrderService_GetDashboardStats0_HTTP_Handler(srv *OrderService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in DashboardStatsRequest
		http.SetOperation(ctx, OperationOrderGetDashboardStats)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetDashboardStats(ctx, req.(*DashboardStatsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AuthService_Login0_HTTP_Handler(srv *AuthService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in LoginRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAuthLogin)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Login(ctx, req.(*LoginRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AuthService_Verify0_HTTP_Handler(srv *AuthService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in VerifyRequest
		http.SetOperation(ctx, OperationAuthVerify)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Verify(ctx, req.(*VerifyRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
