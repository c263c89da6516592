package repository

import (
	"context"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 玩家档案仓储接口
type ProfileRepository interface {
	GetDB() *gorm.DB
	WithTx(tx *gorm.DB) ProfileRepository
	Create(ctx context.Context, profile *models.Profile) error
	Exists(ctx context.Context, identity string) (bool, error)
	FindByIdentity(ctx context.Context, identity string) (*models.Profile, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Profile, error)
	LockForUpdate(ctx context.Context, identity string) (*models.Profile, error)
	AddPoints(ctx context.Context, identity string, amount int64) error
	DeductPoints(ctx context.Context, identity string, amount int64) error
	RecordResult(ctx context.Context, identity string, won, lost bool, earned int64) error
	Save(ctx context.Context, profile *models.Profile) error
}

type profileRepo struct {
	*BaseRepo
}

// NewProfileRepository 创建玩家档案仓储
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepo{BaseRepo: &BaseRepo{db: db}}
}

// WithTx 使用事务
func (r *profileRepo) WithTx(tx *gorm.DB) ProfileRepository {
	return &profileRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Create 创建档案
func (r *profileRepo) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// Exists 档案是否存在
func (r *profileRepo) Exists(ctx context.Context, identity string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("identity = ?", identity).Count(&count).Error
	return count > 0, err
}

// FindByIdentity 根据身份查找档案
func (r *profileRepo) FindByIdentity(ctx context.Context, identity string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("identity = ?", identity).First(&profile).Error; err != nil {
		return nil, notFound(err, "档案不存在: "+identity)
	}
	return &profile, nil
}

// FindByReferralCode 根据推荐码查找档案
func (r *profileRepo) FindByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&profile).Error; err != nil {
		return nil, notFound(err, "推荐码不存在: "+code)
	}
	return &profile, nil
}

// LockForUpdate 锁定档案（悲观锁）
func (r *profileRepo) LockForUpdate(ctx context.Context, identity string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("identity = ?", identity).
		First(&profile).Error
	if err != nil {
		return nil, notFound(err, "档案不存在: "+identity)
	}
	return &profile, nil
}

// AddPoints 增加积分
func (r *profileRepo) AddPoints(ctx context.Context, identity string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("identity = ?", identity).
		Update("points_balance", gorm.Expr("points_balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrNotFound, "档案不存在: "+identity)
	}
	return nil
}

// DeductPoints 扣减积分，余额不足时不修改
func (r *profileRepo) DeductPoints(ctx context.Context, identity string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("identity = ? AND points_balance >= ?", identity, amount).
		Update("points_balance", gorm.Expr("points_balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrInsufficientFunds, "%s 积分不足 %d", identity, amount)
	}
	return nil
}

// RecordResult 记录一局结果
func (r *profileRepo) RecordResult(ctx context.Context, identity string, won, lost bool, earned int64) error {
	updates := map[string]interface{}{
		"games_played": gorm.Expr("games_played + 1"),
	}
	if won {
		updates["wins"] = gorm.Expr("wins + 1")
	}
	if lost {
		updates["losses"] = gorm.Expr("losses + 1")
	}
	if earned > 0 {
		updates["total_points_earned"] = gorm.Expr("total_points_earned + ?", earned)
	}
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("identity = ?", identity).
		Updates(updates).Error
}

// Save 保存档案
func (r *profileRepo) Save(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
