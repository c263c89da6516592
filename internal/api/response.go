package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// respondError 按错误类别映射状态码，响应体为 errors.ErrorResponse
func respondError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err, apperrors.ErrUnknown)
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
}

func bindError(c *gin.Context, err error) {
	respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "请求参数错误"))
}
