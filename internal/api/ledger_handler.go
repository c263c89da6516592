package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/middleware"
)

// LedgerHandler 账本指令处理器，签名身份取自令牌
type LedgerHandler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewLedgerHandler 创建账本处理器
func NewLedgerHandler(l *ledger.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, logger: logger}
}

// ReferrerRequest 绑定推荐人
type ReferrerRequest struct {
	Code string `json:"code" binding:"required"`
}

// CommitRequest 提交承诺
type CommitRequest struct {
	Commitment string `json:"commitment" binding:"required"`
}

// RevealRequest 揭示招式，nonce 以字符串传输避免精度丢失
type RevealRequest struct {
	Move  string `json:"move" binding:"required"`
	Nonce uint64 `json:"nonce,string"`
}

// AccountResponse 身份的资金概况
type AccountResponse struct {
	Identity      string `json:"identity"`
	PointsBalance int64  `json:"points_balance"`
	NativeBalance int64  `json:"native_balance"`
}

func signer(c *gin.Context) (string, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		respondError(c, apperrors.New(apperrors.ErrAuthentication, "缺少签名身份"))
	}
	return identity, ok
}

// InitializeProfile 初始化玩家档案
// @Summary 初始化档案
// @Description 为令牌身份创建档案并发放初始积分
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/profiles [post]
func (h *LedgerHandler) InitializeProfile(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	profile, err := h.ledger.InitializeProfile(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

// GetProfile 查询档案
// @Summary 查询档案
// @Tags Profile
// @Produce json
// @Param identity path string true "身份"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/profiles/{identity} [get]
func (h *LedgerHandler) GetProfile(c *gin.Context) {
	profile, err := h.ledger.GetProfile(c.Request.Context(), c.Param("identity"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

// SetReferrer 绑定推荐人
// @Summary 绑定推荐码
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ReferrerRequest true "推荐码"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/profiles/referrer [post]
func (h *LedgerHandler) SetReferrer(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	var req ReferrerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	profile, err := h.ledger.SetReferrer(c.Request.Context(), identity, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

// CreateMatch 创建对局并托管押注
// @Summary 创建对局
// @Tags Match
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ledger.CreateMatchParams true "对局参数"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 402 {object} errors.ErrorResponse
// @Router /api/v1/matches [post]
func (h *LedgerHandler) CreateMatch(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	var params ledger.CreateMatchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		bindError(c, err)
		return
	}
	params.Creator = identity
	match, err := h.ledger.CreateMatch(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// GetMatch 查询对局
// @Summary 查询对局
// @Tags Match
// @Produce json
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id} [get]
func (h *LedgerHandler) GetMatch(c *gin.Context) {
	match, err := h.ledger.GetMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// JoinMatch 加入对局
// @Summary 加入对局
// @Tags Match
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/join [post]
func (h *LedgerHandler) JoinMatch(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	match, err := h.ledger.JoinMatch(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// Commit 提交本回合承诺
// @Summary 提交承诺
// @Tags Match
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Param request body CommitRequest true "SHA-256 承诺（十六进制）"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/commit [post]
func (h *LedgerHandler) Commit(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	digest, err := rps.ParseDigest(req.Commitment)
	if err != nil {
		respondError(c, err)
		return
	}
	match, err := h.ledger.SubmitMoveCommitment(c.Request.Context(), c.Param("id"), identity, digest)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// Reveal 揭示招式
// @Summary 揭示招式
// @Tags Match
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Param request body RevealRequest true "招式与随机数"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/reveal [post]
func (h *LedgerHandler) Reveal(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	move, err := rps.ParseMove(req.Move)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.ledger.RevealMove(c.Request.Context(), c.Param("id"), identity, move, req.Nonce)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// Finalize 结算已结束的对局，任何身份均可触发
// @Summary 结算对局
// @Tags Match
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/finalize [post]
func (h *LedgerHandler) Finalize(c *gin.Context) {
	settlement, err := h.ledger.FinalizeMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("对局已结算",
		zap.String("match_id", settlement.MatchID),
		zap.String("winner", settlement.Winner))
	respondOK(c, settlement)
}

// Abandon 放弃对局
// @Summary 放弃对局
// @Tags Match
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/abandon [post]
func (h *LedgerHandler) Abandon(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	match, err := h.ledger.AbandonMatch(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// FinalizeAbandoned 退还已放弃对局的押注
// @Summary 放弃对局退款
// @Tags Match
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/finalize-abandoned [post]
func (h *LedgerHandler) FinalizeAbandoned(c *gin.Context) {
	settlement, err := h.ledger.FinalizeAbandonedMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, settlement)
}

// Delegate 将推进权限委托给协调者
// @Summary 委托对局
// @Tags Match
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/delegate [post]
func (h *LedgerHandler) Delegate(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	match, err := h.ledger.Delegate(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// Undelegate 权限持有者交回权限并回写结果
// @Summary 解除委托
// @Tags Match
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "对局ID"
// @Param request body ledger.DelegationOutcome false "协调者回写的结果"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/undelegate [post]
func (h *LedgerHandler) Undelegate(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	var outcome *ledger.DelegationOutcome
	if c.Request.ContentLength > 0 {
		outcome = &ledger.DelegationOutcome{}
		if err := c.ShouldBindJSON(outcome); err != nil {
			bindError(c, err)
			return
		}
	}
	match, err := h.ledger.Undelegate(c.Request.Context(), c.Param("id"), identity, outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, match)
}

// Entries 对局的资金流水
// @Summary 对局流水
// @Tags Match
// @Produce json
// @Param id path string true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/entries [get]
func (h *LedgerHandler) Entries(c *gin.Context) {
	entries, err := h.ledger.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, entries)
}

// MyAccount 当前身份的积分与原生代币余额
// @Summary 我的账户
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/accounts/me [get]
func (h *LedgerHandler) MyAccount(c *gin.Context) {
	identity, ok := signer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	profile, err := h.ledger.GetProfile(ctx, identity)
	if err != nil {
		respondError(c, err)
		return
	}
	balance, err := h.ledger.Balance(ctx, identity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, AccountResponse{
		Identity:      identity,
		PointsBalance: profile.PointsBalance,
		NativeBalance: balance,
	})
}
