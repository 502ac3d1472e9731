package migration

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// CheckAndRecover 检查并恢复未完成的迁移，必须在打开数据库之前调用
// 锁文件存在表示上次迁移未正常完成：restore 为 true 时从锁文件记录的备份恢复并删除锁文件，
// 否则返回 ErrIncompleteMigration。返回值表示是否发现了未完成的迁移。
func CheckAndRecover(dbPath, backupDir string, restore bool) (bool, error) {
	lockManager := NewLockManager(dbPath)
	if !lockManager.IsLocked() {
		return false, nil
	}

	lockInfo, err := lockManager.GetLockInfo()
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrIncompleteMigration, err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"component":   "migration",
		"db_path":     dbPath,
		"run_id":      lockInfo.RunID,
		"start_time":  lockInfo.StartTime,
		"pid":         lockInfo.PID,
		"backup_path": lockInfo.BackupPath,
	})
	logger.Warn("detected incomplete migration")

	if !restore {
		return true, fmt.Errorf("%w: run %s started at %s, backup at %s (lock file: %s)",
			ErrIncompleteMigration, lockInfo.RunID, lockInfo.StartTime, lockInfo.BackupPath, lockManager.GetLockPath())
	}

	if lockInfo.BackupPath == "" {
		return true, ErrNoBackup
	}
	if err := NewBackupManager(dbPath, backupDir).RestoreBackup(lockInfo.BackupPath); err != nil {
		return true, fmt.Errorf("recovery failed: %w", err)
	}
	if err := lockManager.Release(); err != nil {
		return true, err
	}
	logger.Info("database recovered from backup")
	return true, nil
}

// Rollback 从备份恢复数据库，必须在数据库关闭时调用
// 优先使用 from，其次使用锁文件中记录的备份，最后使用最新的备份。返回实际使用的备份路径。
func Rollback(dbPath, backupDir, from string) (string, error) {
	lockManager := NewLockManager(dbPath)
	backupManager := NewBackupManager(dbPath, backupDir)

	backupPath := from
	if lockManager.IsLocked() {
		lockInfo, err := lockManager.GetLockInfo()
		if err != nil {
			return "", fmt.Errorf("failed to read lock info: %w", err)
		}
		if backupPath == "" {
			backupPath = lockInfo.BackupPath
		} else if lockInfo.BackupPath != "" && lockInfo.BackupPath != backupPath {
			logrus.WithFields(logrus.Fields{
				"component":   "migration",
				"lock_backup": lockInfo.BackupPath,
				"from":        backupPath,
			}).Warn("explicit backup overrides the one recorded by the incomplete migration")
		}
	}
	if backupPath == "" {
		latest, err := backupManager.GetLatestBackup()
		if err != nil {
			return "", fmt.Errorf("failed to get latest backup: %w", err)
		}
		backupPath = latest
	}
	if backupPath == "" {
		return "", ErrNoBackup
	}

	logrus.WithFields(logrus.Fields{
		"component":   "migration",
		"backup_path": backupPath,
	}).Info("rolling back from backup")
	if err := backupManager.RestoreBackup(backupPath); err != nil {
		return "", err
	}
	return backupPath, lockManager.Release()
}
