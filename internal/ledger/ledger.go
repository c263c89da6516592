// Package ledger 权威账本：对局记录、玩家档案、托管与结算。
// 每条指令在一个数据库事务内执行，失败时不留下任何部分修改。
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger 权威账本
type Ledger struct {
	db     *gorm.DB
	repos  *repository.Repositories
	policy Policy
	logger *zap.Logger
}

// New 创建账本
func New(db *gorm.DB, policy Policy, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		repos:  repository.NewRepositories(db),
		policy: policy,
		logger: logger,
	}
}

// Policy 当前规则
func (l *Ledger) Policy() Policy {
	return l.policy
}

// exec 在事务内执行一条指令
func (l *Ledger) exec(ctx context.Context, instruction, matchID, identity string, fn func(r *repository.Repositories) error) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(l.repos.WithTx(tx))
	})

	fields := []zap.Field{
		zap.String("instruction", instruction),
		zap.String("match_id", matchID),
		zap.String("identity", identity),
	}
	if err != nil {
		l.logger.Warn("账本指令被拒绝", append(fields, zap.Error(err))...)
		return apperrors.Wrap(err, apperrors.ErrTransaction, instruction)
	}
	l.logger.Info("账本指令已执行", fields...)
	return nil
}

// journal 追加一条流水
func journal(ctx context.Context, r *repository.Repositories, entry models.LedgerEntry) error {
	entry.EntryNo = uuid.NewString()
	return r.Entries.Create(ctx, &entry)
}

// GetProfile 查询档案
func (l *Ledger) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	return l.repos.Profiles.FindByIdentity(ctx, identity)
}

// GetMatch 查询对局
func (l *Ledger) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return l.repos.Matches.FindByMatchID(ctx, matchID)
}

// Balance 查询原生代币余额
func (l *Ledger) Balance(ctx context.Context, owner string) (int64, error) {
	return l.repos.Accounts.Balance(ctx, owner)
}

// Entries 对局资金流水
func (l *Ledger) Entries(ctx context.Context, matchID string) ([]*models.LedgerEntry, error) {
	if _, err := l.repos.Matches.FindByMatchID(ctx, matchID); err != nil {
		return nil, err
	}
	return l.repos.Entries.ListByMatch(ctx, matchID)
}

// Reveals 对局揭示记录
func (l *Ledger) Reveals(ctx context.Context, matchID string) ([]*models.MatchReveal, error) {
	return l.repos.Reveals.ListByMatch(ctx, matchID)
}

// Stats 账本统计
type Stats struct {
	Matches         map[models.MatchStatus]int64 `json:"matches"`
	NativeFees      int64                        `json:"native_fees"`
	PointsFees      int64                        `json:"points_fees"`
	NativeReferrals int64                        `json:"native_referrals"`
	TreasuryBalance int64                        `json:"treasury_balance"`
}

// Stats 汇总统计
func (l *Ledger) Stats(ctx context.Context) (*Stats, error) {
	counts, err := l.repos.Matches.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	stats := &Stats{Matches: counts}
	if stats.NativeFees, err = l.repos.Entries.SumByKind(ctx, models.EntryFee, models.CurrencyNative); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if stats.PointsFees, err = l.repos.Entries.SumByKind(ctx, models.EntryFee, models.CurrencyPoints); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if stats.NativeReferrals, err = l.repos.Entries.SumByKind(ctx, models.EntryReferral, models.CurrencyNative); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if stats.TreasuryBalance, err = l.repos.Accounts.Balance(ctx, l.policy.TreasuryIdentity); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return stats, nil
}

// ListMatches 查询某状态下且在指定时间前未更新的对局
func (l *Ledger) ListMatches(ctx context.Context, status models.MatchStatus, updatedBefore time.Time) ([]*models.Match, error) {
	return l.repos.Matches.ListByStatus(ctx, status, updatedBefore)
}
