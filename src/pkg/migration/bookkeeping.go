package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed bookkeeping/*.sql
var bookkeepingMigrations embed.FS

// bookkeepingSource 程序自身记录表的迁移源
type bookkeepingSource struct{}

// GetFS 返回迁移文件目录的文件系统
func (s *bookkeepingSource) GetFS() (fs.FS, error) {
	return bookkeepingMigrations, nil
}

// GetSubDir 返回迁移文件在FS中的子目录
func (s *bookkeepingSource) GetSubDir() string {
	return "bookkeeping"
}

// IsEmbedded 返回迁移文件是否嵌入
func (s *bookkeepingSource) IsEmbedded() bool {
	return true
}

// BookkeepingSource 返回 system_meta 与 migration_history 的迁移源
func BookkeepingSource() MigrationSource {
	return &bookkeepingSource{}
}

// ApplyBookkeeping 创建或升级 system_meta 与 migration_history，返回当前版本
func ApplyBookkeeping(db *sql.DB) (uint, error) {
	return ApplySource(db, BookkeepingSource())
}

// ApplySource 使用 golang-migrate 执行迁移源中的版本化 SQL 文件
// 不调用 migrate.Close，它会关闭传入的 db。
func ApplySource(db *sql.DB, source MigrationSource) (uint, error) {
	migrationsFS, err := source.GetFS()
	if err != nil {
		return 0, fmt.Errorf("failed to get migrations fs: %w", err)
	}

	subDir := source.GetSubDir()
	if subDir == "" {
		subDir = "."
	}
	sourceDriver, err := iofs.New(migrationsFS, subDir)
	if err != nil {
		return 0, fmt.Errorf("failed to create iofs source: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	mig, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	fromVersion, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fromVersion, fmt.Errorf("%w: bookkeeping version %d is dirty", ErrMigrationFailed, fromVersion)
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fromVersion, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	version, _, err := mig.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"component": "migration",
		"embedded":  source.IsEmbedded(),
	})
	if version != fromVersion {
		logger.WithFields(logrus.Fields{
			"from_version": fromVersion,
			"to_version":   version,
		}).Info("bookkeeping tables migrated")
	} else {
		logger.WithField("version", version).Debug("bookkeeping tables are up to date")
	}
	return version, nil
}
