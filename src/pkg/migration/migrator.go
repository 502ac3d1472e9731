package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/metrics"
	"github.com/watcher-go/watcher-go/src/pkg/schema"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

var (
	// ErrMigrationFailed 迁移失败错误
	ErrMigrationFailed = errors.New("migration failed")
	// ErrBackupFailed 迁移前备份失败，数据库未被修改
	ErrBackupFailed = errors.New("backup before migration failed")
	// ErrIncompleteMigration 上次迁移未完成
	ErrIncompleteMigration = errors.New("previous migration did not complete")
	// ErrLocked 数据库被锁定错误
	ErrLocked = errors.New("database is locked by another migration")
	// ErrNoBackup 无备份可回滚错误
	ErrNoBackup = errors.New("no backup available for rollback")
	// ErrInsufficientSpace 备份目录剩余空间不足
	ErrInsufficientSpace = errors.New("insufficient disk space for backup")
)

// TempSuffix 重建表时旧表的临时名称后缀
const TempSuffix = "_TMP"

// Migrator 数据库迁移器
type Migrator struct {
	exec          Executor
	catalog       *schema.Catalog
	introspector  *schema.Introspector
	lockManager   *LockManager
	backupManager *BackupManager
	appVersion    string
	logger        *logrus.Entry

	newRunID func() string
}

// NewMigrator 创建迁移器
func NewMigrator(exec Executor, introspector *schema.Introspector, cfg Config) (*Migrator, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if introspector == nil {
		return nil, fmt.Errorf("introspector cannot be nil")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	dbPath := exec.Path()
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	return &Migrator{
		exec:          exec,
		catalog:       cfg.Catalog,
		introspector:  introspector,
		lockManager:   NewLockManager(dbPath),
		backupManager: NewBackupManager(dbPath, cfg.BackupDir),
		appVersion:    cfg.AppVersion,
		logger: logrus.WithFields(logrus.Fields{
			"component": "migration",
			"db_path":   dbPath,
		}),
		newRunID: func() string { return uuid.Must(uuid.NewV4()).String() },
	}, nil
}

// Backups 返回备份管理器
func (m *Migrator) Backups() *BackupManager {
	return m.backupManager
}

// Plan 计算声明结构与实际结构的差异，不做任何修改
func (m *Migrator) Plan(ctx context.Context) (schema.Diff, error) {
	live, err := m.introspector.Live(ctx)
	if err != nil {
		return schema.Diff{}, err
	}
	return schema.ComputeDiff(m.catalog.Declared(), live), nil
}

// Run 执行迁移
func (m *Migrator) Run(ctx context.Context) (*Result, error) {
	if m.lockManager.IsLocked() {
		info, err := m.lockManager.GetLockInfo()
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read lock info: %v", ErrIncompleteMigration, err)
		}
		return nil, fmt.Errorf("%w: run %s started at %s, backup at %s",
			ErrIncompleteMigration, info.RunID, info.StartTime, info.BackupPath)
	}

	diff, err := m.Plan(ctx)
	if err != nil {
		metrics.MigrationRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	result := &Result{Diff: diff}
	if diff.Empty() {
		m.logger.Debug("database schema is up to date")
		metrics.MigrationRuns.WithLabelValues("noop").Inc()
		return result, nil
	}

	result.RunID = m.newRunID()
	started := time.Now()
	logger := m.logger.WithField("run_id", result.RunID)
	logger.WithField("columns", diff.ColumnCount()).Info("检测到数据库结构变化，开始迁移")

	// 新表不涉及已有数据，直接创建
	for _, td := range diff.Missing() {
		table, _ := m.catalog.Table(td.Table)
		if _, err := m.exec.Execute(ctx, sqlexec.Statement(table.CreateSQL())); err != nil {
			metrics.MigrationRuns.WithLabelValues("failed").Inc()
			return result, fmt.Errorf("%w: create table %s: %w", ErrMigrationFailed, td.Table, err)
		}
		result.Created = append(result.Created, td.Table)
		logger.WithField("table", td.Table).Info("已创建数据表")
	}

	existing := diff.Existing()
	if len(existing) > 0 {
		backupPath, err := m.backup(ctx)
		if err != nil {
			metrics.Backups.WithLabelValues("failed").Inc()
			metrics.MigrationRuns.WithLabelValues("failed").Inc()
			return result, fmt.Errorf("%w: %w", ErrBackupFailed, err)
		}
		metrics.Backups.WithLabelValues("ok").Inc()
		result.BackupPath = backupPath
		logger.WithField("backup_path", backupPath).Info("已备份数据库")

		tables := make([]string, len(existing))
		for i, td := range existing {
			tables[i] = td.Table
		}
		lockInfo := CreateLockInfo(result.RunID, m.exec.Path(), backupPath, tables)
		if err := m.lockManager.Acquire(lockInfo); err != nil {
			metrics.MigrationRuns.WithLabelValues("failed").Inc()
			return result, fmt.Errorf("%w: failed to acquire lock: %w", ErrMigrationFailed, err)
		}

		for _, td := range existing {
			if err := m.migrateTable(ctx, td); err != nil {
				// 锁文件保留，下次启动时据此恢复
				logger.WithError(err).WithFields(logrus.Fields{
					"table":       td.Table,
					"backup_path": backupPath,
					"lock_path":   m.lockManager.GetLockPath(),
				}).Error("数据库迁移失败")
				m.introspector.Invalidate()
				metrics.MigrationRuns.WithLabelValues("failed").Inc()
				return result, fmt.Errorf("%w: table %s: %w", ErrMigrationFailed, td.Table, err)
			}
			result.Altered = append(result.Altered, td.Table)
		}
	}
	result.ColumnsAdded = diff.ColumnCount()
	m.introspector.Invalidate()

	if err := m.lockManager.Release(); err != nil {
		logger.WithError(err).Warn("删除迁移锁文件失败")
	}

	record := HistoryRecord{
		RunID:        result.RunID,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		BackupPath:   result.BackupPath,
		Tables:       append(append([]string(nil), result.Created...), result.Altered...),
		ColumnsAdded: result.ColumnsAdded,
		AppVersion:   m.appVersion,
	}
	if err := RecordHistory(ctx, m.exec, record); err != nil {
		logger.WithError(err).Warn("写入迁移历史失败")
	}

	metrics.MigrationRuns.WithLabelValues("ok").Inc()
	metrics.ColumnsAdded.Add(float64(result.ColumnsAdded))
	logger.WithFields(logrus.Fields{
		"created":     result.Created,
		"altered":     result.Altered,
		"backup_path": result.BackupPath,
		"duration":    time.Since(started).String(),
	}).Info("database migration completed")

	return result, nil
}

// backup 在独占状态下复制数据库文件
func (m *Migrator) backup(ctx context.Context) (string, error) {
	var backupPath string
	err := m.exec.Snapshot(ctx, func() error {
		p, err := m.backupManager.CreateBackup()
		backupPath = p
		return err
	})
	if err != nil {
		return "", err
	}
	if backupPath == "" {
		return "", fmt.Errorf("database file %s not found", m.exec.Path())
	}
	return backupPath, nil
}

// migrateTable 补列、回填改名列，然后按声明结构重建表
func (m *Migrator) migrateTable(ctx context.Context, td schema.TableDiff) error {
	table, ok := m.catalog.Table(td.Table)
	if !ok {
		return fmt.Errorf("table %s is not declared", td.Table)
	}
	name := ident(table.Name)
	logger := m.logger.WithField("table", table.Name)

	added := make(map[string]bool, len(td.Columns))
	for _, c := range td.Columns {
		stmt := strings.TrimSpace(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", name, ident(c.Name), c.Type))
		if err := m.exec1(ctx, stmt); err != nil {
			return err
		}
		added[strings.ToLower(c.Name)] = true
	}

	m.introspector.Invalidate()
	liveCols, err := m.introspector.Columns(ctx, table.Name)
	if err != nil {
		return err
	}
	live := schema.TableSchema{Name: table.Name, Columns: liveCols}

	for _, rule := range m.catalog.Renames(table.Name) {
		if !added[strings.ToLower(rule.Column)] {
			continue
		}
		if !live.Has(rule.Legacy) {
			logger.WithFields(logrus.Fields{
				"column": rule.Column,
				"legacy": rule.Legacy,
			}).Info("旧列不存在，跳过数据回填")
			continue
		}
		if err := m.exec1(ctx, fmt.Sprintf("UPDATE %s SET %s = %s", name, ident(rule.Column), ident(rule.Legacy))); err != nil {
			return err
		}
	}

	tmp := ident(table.Name + TempSuffix)
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = ident(c.Name)
	}
	colList := strings.Join(cols, ", ")

	steps := []string{
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", name, tmp),
		table.CreateSQL(),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", name, colList, colList, tmp),
		fmt.Sprintf("DROP TABLE %s", tmp),
	}
	for _, stmt := range steps {
		if err := m.exec1(ctx, stmt); err != nil {
			return err
		}
	}
	logger.WithField("columns", len(td.Columns)).Info("已重建数据表")
	return nil
}

func (m *Migrator) exec1(ctx context.Context, stmt string) error {
	_, err := m.exec.Execute(ctx, sqlexec.Statement(stmt))
	return err
}

// ident 为已校验过的标识符加引号
func ident(name string) string {
	return `"` + name + `"`
}
