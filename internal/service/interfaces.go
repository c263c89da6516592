package service

import (
	"context"
	"time"

	"github.com/wfunc/rps-arena/internal/utils"
)

// AuthService 认证服务接口
type AuthService interface {
	// 运营账号登录
	OperatorLogin(ctx context.Context, req *OperatorLoginRequest) (*TokenResponse, error)
	// 为身份签发令牌
	IssueToken(identity, role string) (*TokenResponse, error)
	// 验证
	ValidateToken(ctx context.Context, token string) (*utils.IdentityClaims, error)
}

// OperatorLoginRequest 运营登录请求
type OperatorLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse 令牌响应
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	Identity  string    `json:"identity"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
