package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockFileExtension 锁文件扩展名
	LockFileExtension = ".migration.lock"
)

// LockManager 锁管理器
// 锁文件存在表示有一次迁移已经开始修改数据库但尚未完成
type LockManager struct {
	lockPath string
}

// NewLockManager 创建锁管理器
func NewLockManager(dbPath string) *LockManager {
	return &LockManager{
		lockPath: dbPath + LockFileExtension,
	}
}

// GetLockPath 获取锁文件路径
func (m *LockManager) GetLockPath() string {
	return m.lockPath
}

// Acquire 获取锁
func (m *LockManager) Acquire(info *LockInfo) error {
	if m.IsLocked() {
		existingInfo, err := m.GetLockInfo()
		if err != nil {
			return fmt.Errorf("lock file exists but cannot be read: %w", err)
		}
		return fmt.Errorf("%w: run %s started at %s (PID: %d)",
			ErrLocked, existingInfo.RunID, existingInfo.StartTime, existingInfo.PID)
	}

	if err := os.MkdirAll(filepath.Dir(m.lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock file directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock info: %w", err)
	}

	// O_EXCL 避免两个进程同时写入
	f, err := os.OpenFile(m.lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrLocked, m.lockPath)
		}
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return f.Sync()
}

// Release 释放锁
func (m *LockManager) Release() error {
	if err := os.Remove(m.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked 检查是否被锁定
func (m *LockManager) IsLocked() bool {
	_, err := os.Stat(m.lockPath)
	return err == nil
}

// GetLockInfo 获取锁信息
func (m *LockManager) GetLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(m.lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock info: %w", err)
	}

	return &info, nil
}

// CreateLockInfo 创建锁信息
func CreateLockInfo(runID, dbPath, backupPath string, tables []string) *LockInfo {
	return &LockInfo{
		RunID:      runID,
		DBPath:     dbPath,
		BackupPath: backupPath,
		StartTime:  time.Now().Format(time.RFC3339),
		PID:        os.Getpid(),
		Tables:     tables,
	}
}
