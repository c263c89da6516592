package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/rps-arena/internal/game"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/middleware"
	ws "github.com/wfunc/rps-arena/internal/websocket"
)

// AdminHandler 运营接口
type AdminHandler struct {
	ledger      *ledger.Ledger
	coordinator *game.Coordinator
	hub         *ws.Hub
	logger      *zap.Logger
}

// NewAdminHandler 创建运营处理器
func NewAdminHandler(l *ledger.Ledger, coordinator *game.Coordinator, hub *ws.Hub, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{ledger: l, coordinator: coordinator, hub: hub, logger: logger}
}

// DepositRequest 为原生代币账户入金
type DepositRequest struct {
	Identity string `json:"identity" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
}

// DepositResponse 入金结果
type DepositResponse struct {
	Identity string `json:"identity"`
	Balance  int64  `json:"balance"`
}

// StatsResponse 运营统计
type StatsResponse struct {
	Ledger      *ledger.Stats `json:"ledger"`
	Sessions    game.Stats    `json:"sessions"`
	Connections int           `json:"connections"`
}

// Deposit 入金
// @Summary 原生代币入金
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DepositRequest true "入金"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/admin/deposit [post]
func (h *AdminHandler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	balance, err := h.ledger.Deposit(c.Request.Context(), req.Identity, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	operator, _ := middleware.GetIdentity(c)
	h.logger.Info("运营入金",
		zap.String("operator", operator),
		zap.String("identity", req.Identity),
		zap.Int64("amount", req.Amount))
	respondOK(c, DepositResponse{Identity: req.Identity, Balance: balance})
}

// Stats 统计
// @Summary 运营统计
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse
// @Router /api/v1/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, StatsResponse{
		Ledger:      stats,
		Sessions:    h.coordinator.Stats(),
		Connections: h.hub.GetOnlineCount(),
	})
}
