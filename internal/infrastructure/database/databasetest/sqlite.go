// Package databasetest 为测试提供基于 SQLite 的 gorm 连接
package databasetest

import (
	"path/filepath"
	"testing"

	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 在临时目录创建 SQLite 数据库并完成迁移
//
// 只保留一个连接：SQLite 不支持行锁，单连接让并发事务在连接池上排队，
// 与生产环境 SELECT ... FOR UPDATE 的串行效果一致
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
