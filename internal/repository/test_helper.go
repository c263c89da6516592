package repository

import (
	"fmt"
	"sync/atomic"

	"github.com/wfunc/rps-arena/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// SetupTestDB 创建独立的内存数据库并迁移全部模型，供各包测试使用
func SetupTestDB() *gorm.DB {
	name := fmt.Sprintf("file:rps_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 单连接，保证同一内存库且写入串行
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Profile{},
		&models.Match{},
		&models.MatchReveal{},
		&models.Account{},
		&models.LedgerEntry{},
		&models.MatchHistory{},
	)
	if err != nil {
		panic(err)
	}
	return db
}

// CleanupTestDB 关闭测试数据库
func CleanupTestDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
