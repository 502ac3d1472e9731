package sqldb

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/configs"
	"github.com/watcher-go/watcher-go/src/consts"
	"github.com/watcher-go/watcher-go/src/pkg/metadata"
	"github.com/watcher-go/watcher-go/src/pkg/migration"
	"github.com/watcher-go/watcher-go/src/pkg/schema"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// Database 打开并迁移完成的数据库
type Database struct {
	*Accessor

	Exec         *sqlexec.Executor
	Introspector *schema.Introspector
	Meta         *metadata.Store
	// Migration 启动时迁移的结果
	Migration *migration.Result

	cfg *configs.Config
}

// MinCompatibleVersion 能够读写当前表结构的最低程序版本
// 删除列或改变列的含义时需要提高。
const MinCompatibleVersion = "1.0.0"

// ExecutorOptions 根据配置生成执行器参数
func ExecutorOptions(cfg *configs.Config) sqlexec.Options {
	return sqlexec.Options{
		Path:          cfg.DBPath(),
		BusyTimeout:   cfg.Database.BusyTimeout,
		JournalMode:   cfg.Database.JournalMode,
		MaxAttempts:   cfg.Database.MaxAttempts,
		RetryInterval: cfg.Database.RetryInterval,
	}
}

// NewMigrator 使用程序声明的表结构创建迁移器
func NewMigrator(exec *sqlexec.Executor, introspector *schema.Introspector, cfg *configs.Config) (*migration.Migrator, error) {
	return migration.NewMigrator(exec, introspector, migration.Config{
		Catalog:    Catalog,
		BackupDir:  cfg.BackupPath(),
		AppVersion: consts.AppVersion,
	})
}

// Open 打开数据库并完成迁移，必须在其他组件访问数据库之前调用
// 顺序：检查上次未完成的迁移 -> 打开 -> 记录表 -> 版本兼容检查 -> 结构迁移 -> 记录版本。
func Open(ctx context.Context, cfg *configs.Config) (*Database, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	dbPath := cfg.DBPath()
	logger := logrus.WithFields(logrus.Fields{
		"component": "sqldb",
		"db_path":   dbPath,
	})

	recovered, err := migration.CheckAndRecover(dbPath, cfg.BackupPath(), cfg.Database.RecoverIncomplete)
	if err != nil {
		return nil, err
	}
	if recovered {
		logger.Warn("上次迁移未完成，已从备份恢复数据库")
	}

	exec, err := sqlexec.Open(ExecutorOptions(cfg))
	if err != nil {
		return nil, err
	}

	if _, err := migration.ApplyBookkeeping(exec.DB()); err != nil {
		exec.Close()
		return nil, err
	}

	meta := metadata.Init(exec)
	fail := func(err error) (*Database, error) {
		metadata.Close()
		exec.Close()
		return nil, err
	}
	// 旧版本程序不能迁移或写入由新版本升级过的数据库
	if err := meta.CheckCompatible(ctx, consts.AppVersion); err != nil {
		return fail(err)
	}

	introspector := schema.NewIntrospector(exec)
	migrator, err := NewMigrator(exec, introspector, cfg)
	if err != nil {
		return fail(err)
	}
	result, err := migrator.Run(ctx)
	if err != nil {
		return fail(err)
	}

	if err := meta.RaiseMinCompatible(ctx, MinCompatibleVersion); err != nil {
		return fail(fmt.Errorf("record min compatible version: %w", err))
	}
	if err := meta.RecordAppVersion(ctx, consts.AppVersion); err != nil {
		return fail(fmt.Errorf("record app version: %w", err))
	}

	logger.WithField("changed", result.Changed()).Info("数据库已就绪")
	return &Database{
		Accessor:     NewAccessor(exec, Catalog, introspector),
		Exec:         exec,
		Introspector: introspector,
		Meta:         meta,
		Migration:    result,
		cfg:          cfg,
	}, nil
}

// SearchResultsForQuality 按画质配置的排序偏好返回搜索结果
func (d *Database) SearchResultsForQuality(ctx context.Context, imdbid, quality string) ([]sqlexec.Row, error) {
	return d.SearchResults(ctx, imdbid, d.cfg.PreferSmaller(quality))
}

// Close 关闭数据库，正常运行期间不调用
func (d *Database) Close() error {
	metadata.Close()
	return d.Exec.Close()
}
