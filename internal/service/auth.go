package service

import (
	"context"
	"time"

	"topup-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// LoginRequest 管理员登录
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginReply 登录结果
type LoginReply struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyRequest 校验令牌（令牌在 Authorization 头中）
type VerifyRequest struct{}

// VerifyReply 校验结果
type VerifyReply struct {
	Success bool `json:"success"`
}

// AuthService 管理员认证
type AuthService struct {
	uc  *biz.AdminAuthUseCase
	log *log.Helper
}

// NewAuthService 创建 AuthService
func NewAuthService(uc *biz.AdminAuthUseCase, logger log.Logger) *AuthService {
	return &AuthService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// Login 管理员登录，返回 JWT
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginReply, error) {
	token, err := s.uc.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.log.Warnf("admin login failed: username=%s, error=%v", req.Username, err)
		return nil, err
	}
	return &LoginReply{Success: true, Token: token.Token, ExpiresAt: token.ExpiresAt}, nil
}

// Verify 令牌已由管理员中间件校验，这里只返回结果
func (s *AuthService) Verify(ctx context.Context, _ *VerifyRequest) (*VerifyReply, error) {
	return &VerifyReply{Success: true}, nil
}
