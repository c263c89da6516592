package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wfunc/rps-arena/internal/service"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// OperatorLogin 运营登录
// @Summary 运营登录
// @Description 校验运营账号的 argon2id 密码并签发 operator 令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.OperatorLoginRequest true "登录信息"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/operator [post]
func (h *AuthHandler) OperatorLogin(c *gin.Context) {
	var req service.OperatorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.authService.OperatorLogin(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp)
}
