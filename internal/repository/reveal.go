package repository

import (
	"context"

	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/gorm"
)

// RevealRepository 揭示记录仓储接口
type RevealRepository interface {
	WithTx(tx *gorm.DB) RevealRepository
	Create(ctx context.Context, reveal *models.MatchReveal) error
	NonceUsed(ctx context.Context, matchID, identity, nonce string) (bool, error)
	ListByMatch(ctx context.Context, matchID string) ([]*models.MatchReveal, error)
}

type revealRepo struct {
	*BaseRepo
}

// NewRevealRepository 创建揭示记录仓储
func NewRevealRepository(db *gorm.DB) RevealRepository {
	return &revealRepo{BaseRepo: &BaseRepo{db: db}}
}

// WithTx 使用事务
func (r *revealRepo) WithTx(tx *gorm.DB) RevealRepository {
	return &revealRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Create 写入揭示记录
func (r *revealRepo) Create(ctx context.Context, reveal *models.MatchReveal) error {
	return r.db.WithContext(ctx).Create(reveal).Error
}

// NonceUsed nonce 是否已在该对局中由同一玩家使用
func (r *revealRepo) NonceUsed(ctx context.Context, matchID, identity, nonce string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MatchReveal{}).
		Where("match_id = ? AND identity = ? AND nonce = ?", matchID, identity, nonce).
		Count(&count).Error
	return count > 0, err
}

// ListByMatch 按回合顺序列出揭示记录
func (r *revealRepo) ListByMatch(ctx context.Context, matchID string) ([]*models.MatchReveal, error) {
	var reveals []*models.MatchReveal
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("round ASC, id ASC").
		Find(&reveals).Error
	return reveals, err
}
