package server

import (
	"context"
	"strings"

	"topup-service/internal/biz"
	topupErrors "topup-service/internal/errors"
	"topup-service/internal/service"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// AdminVerifier 校验管理员令牌
type AdminVerifier interface {
	Verify(ctx context.Context, token string) (*biz.AdminClaims, error)
}

type adminClaimsKey struct{}

// AdminClaimsFromContext 取出中间件写入的管理员声明
func AdminClaimsFromContext(ctx context.Context) (*biz.AdminClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey{}).(*biz.AdminClaims)
	return claims, ok
}

func adminOperation(ctx context.Context, operation string) bool {
	_, ok := service.AdminOperations[operation]
	return ok
}

// AdminAuth 校验 Authorization: Bearer <token>
func AdminAuth(verifier AdminVerifier) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, topupErrors.ErrorUnauthorized("missing transport")
			}
			token := bearerToken(tr.RequestHeader().Get("Authorization"))
			if token == "" {
				return nil, topupErrors.ErrorUnauthorized("no authentication token")
			}
			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				return nil, err
			}
			return handler(context.WithValue(ctx, adminClaimsKey{}, claims), req)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
