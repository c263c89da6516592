package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository 原生代币账户仓储接口
type AccountRepository interface {
	WithTx(tx *gorm.DB) AccountRepository
	Ensure(ctx context.Context, owner string) (*models.Account, error)
	Balance(ctx context.Context, owner string) (int64, error)
	Credit(ctx context.Context, owner string, amount int64) error
	Debit(ctx context.Context, owner string, amount int64) error
}

type accountRepo struct {
	*BaseRepo
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepo{BaseRepo: &BaseRepo{db: db}}
}

// WithTx 使用事务
func (r *accountRepo) WithTx(tx *gorm.DB) AccountRepository {
	return &accountRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Ensure 账户不存在时创建
func (r *accountRepo) Ensure(ctx context.Context, owner string) (*models.Account, error) {
	account := &models.Account{Owner: owner}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "owner"}}, DoNothing: true}).
		Create(account).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).First(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// Balance 查询余额，账户不存在视为 0
func (r *accountRepo) Balance(ctx context.Context, owner string) (int64, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return account.Balance, err
}

// Credit 入账
func (r *accountRepo) Credit(ctx context.Context, owner string, amount int64) error {
	if _, err := r.Ensure(ctx, owner); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("owner = ?", owner).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// Debit 出账，余额不足时不修改
func (r *accountRepo) Debit(ctx context.Context, owner string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("owner = ? AND balance >= ?", owner, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrInsufficientFunds, "%s 余额不足 %d", owner, amount)
	}
	return nil
}
