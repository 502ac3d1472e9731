package migration

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"
)

// 备份后至少保留的剩余空间
const reservedSpace = 16 << 20

func diskFree(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// ensureSpace 检查备份目录所在磁盘能否容纳 size 字节的备份
// 无法获取磁盘信息时只记录警告，不阻止备份。
func (m *BackupManager) ensureSpace(size int64) error {
	free, err := m.freeSpace(m.backupDir)
	if err != nil {
		logrus.WithField("component", "migration").WithError(err).
			Warn("无法获取备份目录的剩余空间，跳过检查")
		return nil
	}
	need := uint64(size) + reservedSpace
	if free < need {
		return fmt.Errorf("%w: need %d bytes in %s, %d available", ErrInsufficientSpace, need, m.backupDir, free)
	}
	return nil
}
