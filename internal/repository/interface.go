package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"gorm.io/gorm"
)

// Pagination 分页参数
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination 创建分页参数
func NewPagination(page, pageSize int) *Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return &Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset 计算偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Paginate 分页查询
func Paginate(p *Pagination) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// BaseRepo 基础仓储实现
type BaseRepo struct {
	db *gorm.DB
}

// GetDB 获取数据库实例
func (r *BaseRepo) GetDB() *gorm.DB {
	return r.db
}

// Transaction 执行事务
func (r *BaseRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// notFound 将 gorm 的记录不存在转为 NotFound 错误
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrNotFound, what)
	}
	return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, what)
}

// Repositories 仓储集合，事务内通过 WithTx 派生
type Repositories struct {
	Profiles ProfileRepository
	Matches  MatchRepository
	Reveals  RevealRepository
	Accounts AccountRepository
	Entries  EntryRepository
	History  HistoryRepository
}

// NewRepositories 创建仓储集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profiles: NewProfileRepository(db),
		Matches:  NewMatchRepository(db),
		Reveals:  NewRevealRepository(db),
		Accounts: NewAccountRepository(db),
		Entries:  NewEntryRepository(db),
		History:  NewHistoryRepository(db),
	}
}

// WithTx 派生事务内的仓储集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return &Repositories{
		Profiles: r.Profiles.WithTx(tx),
		Matches:  r.Matches.WithTx(tx),
		Reveals:  r.Reveals.WithTx(tx),
		Accounts: r.Accounts.WithTx(tx),
		Entries:  r.Entries.WithTx(tx),
		History:  r.History.WithTx(tx),
	}
}
