package migration

import (
	"context"
	"io/fs"

	"github.com/watcher-go/watcher-go/src/pkg/schema"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// Executor 迁移所需的执行器能力
type Executor interface {
	Execute(ctx context.Context, cmd sqlexec.Command) (*sqlexec.Result, error)
	// Snapshot 独占执行 fn，期间没有其他语句运行
	Snapshot(ctx context.Context, fn func() error) error
	// Path 数据库文件路径
	Path() string
}

// MigrationSource 迁移源（SQL文件来源）
type MigrationSource interface {
	// GetFS 返回迁移文件系统
	GetFS() (fs.FS, error)
	// GetSubDir 返回迁移文件在FS中的子目录（如果有）
	GetSubDir() string
	// IsEmbedded 返回迁移文件是否嵌入
	IsEmbedded() bool
}

// Config 迁移配置
type Config struct {
	// Catalog 代码中声明的表结构
	Catalog *schema.Catalog
	// BackupDir 备份目录
	BackupDir string
	// AppVersion 写入迁移历史的程序版本
	AppVersion string
}

// Result 迁移结果
type Result struct {
	// RunID 本次迁移的标识，没有差异时为空
	RunID string
	// Diff 迁移前计算出的差异
	Diff schema.Diff
	// Created 新建的表
	Created []string
	// Altered 重建的表
	Altered []string
	// ColumnsAdded 新增的列数
	ColumnsAdded int
	// BackupPath 备份文件路径（如果有）
	BackupPath string
}

// Changed 本次是否修改了数据库
func (r *Result) Changed() bool {
	return r != nil && (len(r.Created) > 0 || len(r.Altered) > 0)
}

// LockInfo 锁文件信息
type LockInfo struct {
	// RunID 迁移标识
	RunID string `json:"run_id"`
	// DBPath 正在迁移的数据库路径
	DBPath string `json:"db_path"`
	// BackupPath 备份文件路径
	BackupPath string `json:"backup_path"`
	// StartTime 迁移开始时间
	StartTime string `json:"start_time"`
	// PID 进程ID
	PID int `json:"pid"`
	// Tables 需要重建的表
	Tables []string `json:"tables"`
}
