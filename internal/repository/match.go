package repository

import (
	"context"
	"time"

	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository 对局仓储接口
type MatchRepository interface {
	GetDB() *gorm.DB
	WithTx(tx *gorm.DB) MatchRepository
	Create(ctx context.Context, match *models.Match) error
	Exists(ctx context.Context, matchID string) (bool, error)
	FindByMatchID(ctx context.Context, matchID string) (*models.Match, error)
	LockForUpdate(ctx context.Context, matchID string) (*models.Match, error)
	Save(ctx context.Context, match *models.Match) error
	ListByStatus(ctx context.Context, status models.MatchStatus, updatedBefore time.Time) ([]*models.Match, error)
	CountByStatus(ctx context.Context) (map[models.MatchStatus]int64, error)
}

type matchRepo struct {
	*BaseRepo
}

// NewMatchRepository 创建对局仓储
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepo{BaseRepo: &BaseRepo{db: db}}
}

// WithTx 使用事务
func (r *matchRepo) WithTx(tx *gorm.DB) MatchRepository {
	return &matchRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Create 创建对局
func (r *matchRepo) Create(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

// Exists 对局ID是否已占用
func (r *matchRepo) Exists(ctx context.Context, matchID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Match{}).Where("match_id = ?", matchID).Count(&count).Error
	return count > 0, err
}

// FindByMatchID 根据对局ID查找
func (r *matchRepo) FindByMatchID(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&match).Error; err != nil {
		return nil, notFound(err, "对局不存在: "+matchID)
	}
	return &match, nil
}

// LockForUpdate 锁定对局（悲观锁）
func (r *matchRepo) LockForUpdate(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("match_id = ?", matchID).
		First(&match).Error
	if err != nil {
		return nil, notFound(err, "对局不存在: "+matchID)
	}
	return &match, nil
}

// Save 保存对局全部字段
func (r *matchRepo) Save(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Save(match).Error
}

// ListByStatus 查询某状态下且在指定时间前未更新的对局
func (r *matchRepo) ListByStatus(ctx context.Context, status models.MatchStatus, updatedBefore time.Time) ([]*models.Match, error) {
	var matches []*models.Match
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, updatedBefore).
		Order("updated_at ASC").
		Find(&matches).Error
	return matches, err
}

// CountByStatus 按状态统计
func (r *matchRepo) CountByStatus(ctx context.Context) (map[models.MatchStatus]int64, error) {
	var rows []struct {
		Status models.MatchStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[models.MatchStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
