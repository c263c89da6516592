package repository

import (
	"context"

	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository 对局归档仓储接口
type HistoryRepository interface {
	WithTx(tx *gorm.DB) HistoryRepository
	Save(ctx context.Context, history *models.MatchHistory) error
	FindByMatchID(ctx context.Context, matchID string) (*models.MatchHistory, error)
	ListByIdentity(ctx context.Context, identity string, p *Pagination) ([]*models.MatchHistory, error)
}

type historyRepo struct {
	*BaseRepo
}

// NewHistoryRepository 创建对局归档仓储
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepo{BaseRepo: &BaseRepo{db: db}}
}

// WithTx 使用事务
func (r *historyRepo) WithTx(tx *gorm.DB) HistoryRepository {
	return &historyRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Save 写入归档，同一对局只保留首次写入
func (r *historyRepo) Save(ctx context.Context, history *models.MatchHistory) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "match_id"}}, DoNothing: true}).
		Create(history).Error
}

// FindByMatchID 查询归档
func (r *historyRepo) FindByMatchID(ctx context.Context, matchID string) (*models.MatchHistory, error) {
	var history models.MatchHistory
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&history).Error; err != nil {
		return nil, notFound(err, "对局归档不存在: "+matchID)
	}
	return &history, nil
}

// ListByIdentity 分页查询玩家参与的对局
func (r *historyRepo) ListByIdentity(ctx context.Context, identity string, p *Pagination) ([]*models.MatchHistory, error) {
	var histories []*models.MatchHistory
	query := r.db.WithContext(ctx).
		Model(&models.MatchHistory{}).
		Where("player_one = ? OR player_two = ?", identity, identity)
	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}
	err := query.Order("finished_at DESC").Scopes(Paginate(p)).Find(&histories).Error
	return histories, err
}
