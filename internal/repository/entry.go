package repository

import (
	"context"

	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/gorm"
)

// EntryRepository 资金流水仓储接口
type EntryRepository interface {
	WithTx(tx *gorm.DB) EntryRepository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByMatch(ctx context.Context, matchID string) ([]*models.LedgerEntry, error)
	SumByKind(ctx context.Context, kind models.EntryKind, currency models.Currency) (int64, error)
}

type entryRepo struct {
	*BaseRepo
}

// NewEntryRepository 创建流水仓储
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepo{BaseRepo: &BaseRepo{db: db}}
}

// WithTx 使用事务
func (r *entryRepo) WithTx(tx *gorm.DB) EntryRepository {
	return &entryRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Create 追加流水
func (r *entryRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByMatch 列出对局相关流水
func (r *entryRepo) ListByMatch(ctx context.Context, matchID string) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// SumByKind 按类型汇总金额
func (r *entryRepo) SumByKind(ctx context.Context, kind models.EntryKind, currency models.Currency) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("kind = ? AND currency = ?", kind, currency).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
