package migration

import (
	"context"
	"strings"
	"time"

	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// HistoryRecord migration_history 中的一行
type HistoryRecord struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	BackupPath   string
	Tables       []string
	ColumnsAdded int
	AppVersion   string
}

// RecordHistory 写入一条迁移记录
func RecordHistory(ctx context.Context, exec Executor, r HistoryRecord) error {
	_, err := exec.Execute(ctx, sqlexec.Statement(
		`INSERT INTO migration_history (run_id, started_at, finished_at, backup_path, tables, columns_added, app_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
		r.BackupPath,
		strings.Join(r.Tables, ","),
		r.ColumnsAdded,
		r.AppVersion,
	))
	return err
}

// ListHistory 按时间倒序列出迁移记录
func ListHistory(ctx context.Context, exec Executor, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := exec.Execute(ctx, sqlexec.Statement(
		`SELECT run_id, started_at, finished_at, backup_path, tables, columns_added, app_version
		 FROM migration_history ORDER BY started_at DESC LIMIT ?`, limit))
	if err != nil {
		return nil, err
	}

	records := make([]HistoryRecord, 0, res.Len())
	for res.Next() {
		row := res.Row()
		started, _ := time.Parse(time.RFC3339, row.String("started_at"))
		finished, _ := time.Parse(time.RFC3339, row.String("finished_at"))
		var tables []string
		if s := row.String("tables"); s != "" {
			tables = strings.Split(s, ",")
		}
		records = append(records, HistoryRecord{
			RunID:        row.String("run_id"),
			StartedAt:    started,
			FinishedAt:   finished,
			BackupPath:   row.String("backup_path"),
			Tables:       tables,
			ColumnsAdded: int(row.Int64("columns_added")),
			AppVersion:   row.String("app_version"),
		})
	}
	return records, nil
}
