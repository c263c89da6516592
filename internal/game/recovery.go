package game

import (
	"context"
	"time"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
	"go.uber.org/zap"
)

// RecoveryManager 进程重启后的恢复
//
// 会话只存在于内存，重启后仍委托给协调者的账本对局无人推进，恢复时放弃并全额退款。
type RecoveryManager struct {
	logger    *zap.Logger
	ledger    Ledger
	authority string
}

// NewRecoveryManager 创建恢复管理器
func NewRecoveryManager(logger *zap.Logger, l Ledger) *RecoveryManager {
	return &RecoveryManager{
		logger:    logger,
		ledger:    l,
		authority: l.Policy().CoordinatorIdentity,
	}
}

// RecoverOrphans 退还 startedBefore 之前委托、当前进程未持有的对局
func (rm *RecoveryManager) RecoverOrphans(ctx context.Context, startedBefore time.Time) (int, error) {
	matches, err := rm.ledger.ListMatches(ctx, models.MatchDelegated, startedBefore)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, m := range matches {
		if m.Authority != rm.authority {
			continue
		}
		if err := rm.refund(ctx, m.MatchID); err != nil {
			rm.logger.Error("恢复对局失败", zap.String("match_id", m.MatchID), zap.Error(err))
			continue
		}
		recovered++
		rm.logger.Info("已退还无人推进的委托对局",
			zap.String("match_id", m.MatchID),
			zap.Int("round", m.CurrentRound))
	}
	return recovered, nil
}

func (rm *RecoveryManager) refund(ctx context.Context, matchID string) error {
	if _, err := rm.ledger.AbandonMatch(ctx, matchID, rm.authority); err != nil && !apperrors.Is(err, apperrors.ErrInvalidState) {
		return err
	}
	_, err := rm.ledger.FinalizeAbandonedMatch(ctx, matchID)
	if apperrors.Is(err, apperrors.ErrAlreadySettled) {
		return nil
	}
	return err
}
