package database

import (
	"fmt"

	"github.com/wfunc/rps-arena/internal/logger"
	"github.com/wfunc/rps-arena/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models 需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Match{},
		&models.MatchReveal{},
		&models.Account{},
		&models.LedgerEntry{},
		&models.MatchHistory{},
	}
}

// AutoMigrate 迁移全局数据库
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return Migrate(DB)
}

// Migrate 迁移表结构，SQLite 文件库在迁移期间持有文件锁
func Migrate(db *gorm.DB) error {
	log := logger.WithModule("database")

	if dbPath := sqliteFilePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath)
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	log.Info("开始数据库迁移...")
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
	}
	log.Info("数据库迁移完成", zap.Int("tables", len(Models())))
	return nil
}
