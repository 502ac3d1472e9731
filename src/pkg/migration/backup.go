package migration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// BackupDateFormat 备份文件名中的日期格式
const BackupDateFormat = "2006-01-02"

// BackupManager 备份管理器
// 备份文件命名为 <backupDir>/<数据库文件名>.<YYYY-MM-DD>，同一天已存在时追加 .1、.2 ...
// 备份不会被自动删除。
type BackupManager struct {
	dbPath    string
	backupDir string

	now       func() time.Time
	freeSpace func(dir string) (uint64, error)
}

// NewBackupManager 创建备份管理器
func NewBackupManager(dbPath, backupDir string) *BackupManager {
	if backupDir == "" {
		backupDir = filepath.Dir(dbPath)
	}
	return &BackupManager{
		dbPath:    dbPath,
		backupDir: backupDir,
		now:       time.Now,
		freeSpace: diskFree,
	}
}

// Dir 返回备份目录
func (m *BackupManager) Dir() string {
	return m.backupDir
}

// CreateBackup 创建数据库备份
// 数据库文件不存在时返回空路径。
func (m *BackupManager) CreateBackup() (string, error) {
	stat, err := os.Stat(m.dbPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat database: %w", err)
	}

	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := m.ensureSpace(stat.Size()); err != nil {
		return "", err
	}

	backupPath, err := m.nextBackupPath()
	if err != nil {
		return "", err
	}
	if err := copyFile(m.dbPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}

// nextBackupPath 返回当天第一个未被占用的备份文件名
func (m *BackupManager) nextBackupPath() (string, error) {
	base := filepath.Join(m.backupDir, filepath.Base(m.dbPath)+"."+m.now().Format(BackupDateFormat))
	candidate := base
	for n := 1; ; n++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat backup path: %w", err)
		}
		candidate = base + "." + strconv.Itoa(n)
	}
}

// RestoreBackup 从备份恢复数据库
// 调用时数据库不能处于打开状态。
func (m *BackupManager) RestoreBackup(backupPath string) error {
	if backupPath == "" {
		return fmt.Errorf("backup path is empty")
	}

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	// 旧的 WAL 与 journal 会覆盖恢复后的内容，一并删除
	for _, p := range []string{m.dbPath, m.dbPath + "-wal", m.dbPath + "-shm", m.dbPath + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}

	if err := copyFile(backupPath, m.dbPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}

	return nil
}

type backupEntry struct {
	path string
	day  string
	seq  int
}

// ListBackups 列出所有备份文件（最新的在前）
func (m *BackupManager) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(filepath.Base(m.dbPath)) + `\.(\d{4}-\d{2}-\d{2})(?:\.(\d+))?$`)
	var found []backupEntry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		seq := 0
		if match[2] != "" {
			seq, _ = strconv.Atoi(match[2])
		}
		found = append(found, backupEntry{
			path: filepath.Join(m.backupDir, entry.Name()),
			day:  match[1],
			seq:  seq,
		})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].day != found[j].day {
			return found[i].day > found[j].day
		}
		return found[i].seq > found[j].seq
	})

	backups := make([]string, len(found))
	for i, b := range found {
		backups[i] = b.path
	}
	return backups, nil
}

// GetLatestBackup 获取最新的备份文件
func (m *BackupManager) GetLatestBackup() (string, error) {
	backups, err := m.ListBackups()
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", nil
	}
	return backups[0], nil
}

// copyFile 复制文件
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return err
	}

	return dstFile.Sync()
}
