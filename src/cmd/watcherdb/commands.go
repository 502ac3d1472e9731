package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/watcher-go/watcher-go/src/configs"
	"github.com/watcher-go/watcher-go/src/consts"
	"github.com/watcher-go/watcher-go/src/pkg/metadata"
	"github.com/watcher-go/watcher-go/src/pkg/migration"
	"github.com/watcher-go/watcher-go/src/pkg/schema"
	watchersentry "github.com/watcher-go/watcher-go/src/pkg/sentry"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
	"github.com/watcher-go/watcher-go/src/sqldb"
)

func runMigrate(ctx context.Context, cfg *configs.Config) error {
	db, err := sqldb.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	watchersentry.BindStore(ctx, db.Meta)

	r := db.Migration
	if !r.Changed() {
		fmt.Println("数据库结构已是最新")
		return nil
	}
	fmt.Printf("迁移完成 run=%s\n", r.RunID)
	if len(r.Created) > 0 {
		fmt.Printf("  新建表: %s\n", strings.Join(r.Created, ", "))
	}
	if len(r.Altered) > 0 {
		fmt.Printf("  修改表: %s (新增 %d 列)\n", strings.Join(r.Altered, ", "), r.ColumnsAdded)
	}
	if r.BackupPath != "" {
		fmt.Printf("  备份: %s\n", r.BackupPath)
	}
	return nil
}

// openExecutor 打开数据库但不执行迁移
func openExecutor(cfg *configs.Config) (*sqlexec.Executor, error) {
	if _, err := os.Stat(cfg.DBPath()); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.DBPath(), err)
	}
	return sqlexec.Open(sqldb.ExecutorOptions(cfg))
}

func runDiff(ctx context.Context, cfg *configs.Config) error {
	exec, err := openExecutor(cfg)
	if err != nil {
		return err
	}
	defer exec.Close()

	migrator, err := sqldb.NewMigrator(exec, schema.NewIntrospector(exec), cfg)
	if err != nil {
		return err
	}
	diff, err := migrator.Plan(ctx)
	if err != nil {
		return err
	}
	printDiff(os.Stdout, diff)
	return nil
}

func printDiff(w io.Writer, diff schema.Diff) {
	if diff.Empty() {
		fmt.Fprintln(w, "没有差异")
		return
	}
	for _, td := range diff.Tables {
		mark := "~"
		if td.New {
			mark = "+"
		}
		fmt.Fprintf(w, "%s %s\n", mark, td.Table)
		for _, c := range td.Columns {
			fmt.Fprintf(w, "    + %s %s\n", c.Name, c.Type)
		}
	}
}

func runBackup(ctx context.Context, cfg *configs.Config, listOnly bool) error {
	bm := migration.NewBackupManager(cfg.DBPath(), cfg.BackupPath())
	if listOnly {
		backups, err := bm.ListBackups()
		if err != nil {
			return err
		}
		for _, b := range backups {
			fmt.Println(b)
		}
		return nil
	}

	exec, err := openExecutor(cfg)
	if err != nil {
		return err
	}
	defer exec.Close()

	var path string
	err = exec.Snapshot(ctx, func() error {
		var err error
		path, err = bm.CreateBackup()
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("备份完成: %s\n", path)
	return nil
}

func runRecover(_ context.Context, cfg *configs.Config, from string) error {
	used, err := migration.Rollback(cfg.DBPath(), cfg.BackupPath(), from)
	if err != nil {
		return err
	}
	fmt.Printf("已从 %s 恢复数据库\n", used)
	return nil
}

func runHistory(ctx context.Context, cfg *configs.Config, limit int) error {
	exec, err := openExecutor(cfg)
	if err != nil {
		return err
	}
	defer exec.Close()

	if _, err := migration.ApplyBookkeeping(exec.DB()); err != nil {
		return err
	}
	watchersentry.BindStore(ctx, metadata.New(exec))
	records, err := migration.ListHistory(ctx, exec, limit)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, records)
	return nil
}

func printHistory(w io.Writer, records []migration.HistoryRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "没有迁移记录")
		return
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %s  tables=%s columns=%d version=%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.RunID,
			strings.Join(r.Tables, ","),
			r.ColumnsAdded,
			r.AppVersion,
		)
		if r.BackupPath != "" {
			fmt.Fprintf(w, "    backup: %s\n", r.BackupPath)
		}
	}
}

func printVersion(w io.Writer) error {
	b, err := json.MarshalIndent(consts.GetAppInfo(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
