package biz

import (
	"context"
	"crypto/subtle"
	"time"

	"topup-service/internal/conf"
	topupErrors "topup-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims 管理员令牌声明
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminToken 登录结果
type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminAuthUseCase 管理员登录与令牌校验
type AdminAuthUseCase struct {
	secret   []byte
	username string
	password string
	ttl      time.Duration
	log      *log.Helper
}

// NewAdminAuthUseCase 创建管理员鉴权 UseCase
func NewAdminAuthUseCase(c *conf.Bootstrap, logger log.Logger) *AdminAuthUseCase {
	uc := &AdminAuthUseCase{
		ttl: 24 * time.Hour, // 默认值
		log: log.NewHelper(logger),
	}
	if c.Auth != nil {
		uc.secret = []byte(c.Auth.JwtSecret)
		uc.username = c.Auth.AdminUsername
		uc.password = c.Auth.AdminPassword
		if ttl := c.Auth.TokenTtl.AsDuration(); ttl > 0 {
			uc.ttl = ttl
		}
	}
	return uc
}

// Login 校验管理员账号并签发令牌
func (uc *AdminAuthUseCase) Login(ctx context.Context, username, password string) (*AdminToken, error) {
	if len(uc.secret) == 0 || uc.username == "" || uc.password == "" {
		return nil, topupErrors.ErrorConfiguration("admin credentials are not configured")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(uc.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(uc.password)) == 1
	if !userOK || !passOK {
		uc.log.Warnf("admin login rejected: username=%s", username)
		return nil, topupErrors.ErrorUnauthorized("invalid credentials")
	}

	now := timeNow()
	expiresAt := now.Add(uc.ttl)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uc.username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(uc.secret)
	if err != nil {
		return nil, topupErrors.ErrorConfiguration("sign admin token failed").WithCause(err)
	}
	uc.log.Infof("admin logged in: username=%s", username)
	return &AdminToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify 校验管理员令牌
func (uc *AdminAuthUseCase) Verify(ctx context.Context, token string) (*AdminClaims, error) {
	if token == "" {
		return nil, topupErrors.ErrorUnauthorized("missing token")
	}
	if len(uc.secret) == 0 {
		return nil, topupErrors.ErrorConfiguration("jwt secret is not configured")
	}
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return uc.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(timeNow))
	if err != nil || !parsed.Valid {
		return nil, topupErrors.ErrorUnauthorized("invalid token").WithCause(err)
	}
	if claims.Role != "admin" {
		return nil, topupErrors.ErrorUnauthorized("invalid token")
	}
	return claims, nil
}

// VerifyAdminToken 实时推送 join-admin 使用的令牌校验
func (uc *AdminAuthUseCase) VerifyAdminToken(ctx context.Context, token string) error {
	_, err := uc.Verify(ctx, token)
	return err
}
