package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/rps-arena/internal/config"
	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/utils"
)

// authService 认证服务实现
type authService struct {
	operator   config.OperatorConfig
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(cfg config.SecurityConfig, log *zap.Logger) AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	expiry := time.Duration(cfg.JWT.ExpireHours) * time.Hour
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &authService{
		operator:   cfg.Operator,
		jwtManager: utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, expiry),
		log:        log,
	}
}

// OperatorLogin 校验运营账号密码并签发 operator 令牌
func (s *authService) OperatorLogin(ctx context.Context, req *OperatorLoginRequest) (*TokenResponse, error) {
	if s.operator.Username == "" || s.operator.PasswordHash == "" {
		return nil, apperrors.New(apperrors.ErrAuthentication, "未配置运营账号")
	}
	if req.Username != s.operator.Username {
		s.log.Warn("运营登录失败", zap.String("username", req.Username))
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}
	ok, err := utils.VerifyPassword(req.Password, s.operator.PasswordHash)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigValidate, "运营密码哈希无效")
	}
	if !ok {
		s.log.Warn("运营登录失败", zap.String("username", req.Username))
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}

	s.log.Info("运营登录", zap.String("username", req.Username))
	return s.IssueToken(req.Username, utils.RoleOperator)
}

// IssueToken 签发身份令牌
func (s *authService) IssueToken(identity, role string) (*TokenResponse, error) {
	if identity == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "身份不能为空")
	}
	if role == "" {
		role = utils.RolePlayer
	}
	token, expiresAt, err := s.jwtManager.GenerateToken(identity, role)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "签发令牌失败")
	}
	return &TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		Identity:  identity,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken 验证令牌
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.IdentityClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, apperrors.Wrap(err, apperrors.ErrTokenExpired)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrTokenInvalid)
	}
	return claims, nil
}
