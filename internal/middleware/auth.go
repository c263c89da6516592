package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/service"
)

const (
	identityKey = "identity"
	roleKey     = "role"
)

// AuthMiddleware JWT认证中间件，令牌的 Subject 即签名身份
type AuthMiddleware struct {
	authService service.AuthService
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(authService service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// RequireAuth 需要认证的中间件
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireRole 需要特定角色的中间件
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		if !HasAnyRole(c, roles...) {
			abort(c, apperrors.New(apperrors.ErrPermissionDenied, "权限不足"))
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) bool {
	token := extractToken(c)
	if token == "" {
		abort(c, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌"))
		return false
	}
	claims, err := m.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		abort(c, err)
		return false
	}
	c.Set(identityKey, claims.Identity())
	c.Set(roleKey, claims.Role)
	return true
}

func abort(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err, apperrors.ErrAuthentication)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
}

// extractToken 依次从 Authorization、X-Access-Token 与 token 查询参数读取
func extractToken(c *gin.Context) string {
	if bearer := c.GetHeader("Authorization"); bearer != "" {
		parts := strings.SplitN(bearer, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}
	// 浏览器 WebSocket 无法设置请求头
	return c.Query("token")
}

// GetIdentity 从上下文获取签名身份
func GetIdentity(c *gin.Context) (string, bool) {
	identity := c.GetString(identityKey)
	return identity, identity != ""
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) (string, bool) {
	role := c.GetString(roleKey)
	return role, role != ""
}

// HasAnyRole 检查是否有任一角色
func HasAnyRole(c *gin.Context, roles ...string) bool {
	role, ok := GetRole(c)
	if !ok {
		return false
	}
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}
