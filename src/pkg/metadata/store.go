// Package metadata 提供程序元数据的持久化存储
// 数据保存在主数据库的 system_meta 表中（由 bookkeeping 迁移创建），
// 用于记录设备标识、程序版本等需要跨进程保留的信息
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// ErrIncompatibleVersion 数据库要求的最低程序版本高于当前版本
var ErrIncompatibleVersion = errors.New("database requires a newer application version")

// Executor 执行语句的最小接口
type Executor interface {
	Execute(ctx context.Context, cmd sqlexec.Command) (*sqlexec.Result, error)
}

var (
	// globalStore 全局元数据存储实例
	globalStore *Store
	// storeMu 保护全局存储实例
	storeMu sync.RWMutex
)

// Store 元数据存储
type Store struct {
	exec Executor
}

// New 创建元数据存储
func New(exec Executor) *Store {
	return &Store{exec: exec}
}

// Init 设置全局元数据存储
func Init(exec Executor) *Store {
	storeMu.Lock()
	defer storeMu.Unlock()
	globalStore = New(exec)
	return globalStore
}

// GetStore 获取全局元数据存储实例
// 如果未初始化，返回 nil
func GetStore() *Store {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return globalStore
}

// Close 解除全局元数据存储，底层数据库由执行器负责关闭
func Close() {
	storeMu.Lock()
	defer storeMu.Unlock()
	globalStore = nil
}

// Get 从指定命名空间获取值，键不存在返回空字符串
func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	res, err := s.exec.Execute(ctx, sqlexec.Statement(
		`SELECT value FROM system_meta WHERE namespace = ? AND key = ?`, namespace, key))
	if err != nil {
		return "", fmt.Errorf("查询失败: %w", err)
	}
	row, ok := res.First()
	if !ok {
		return "", nil
	}
	return row.String("value"), nil
}

// Set 在指定命名空间设置值
func (s *Store) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.exec.Execute(ctx, sqlexec.Statement(
		`INSERT INTO system_meta (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, strftime('%s', 'now'))
		 ON CONFLICT(namespace, key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = strftime('%s', 'now')`,
		namespace, key, value))
	if err != nil {
		return fmt.Errorf("保存失败: %w", err)
	}
	return nil
}

// Delete 从指定命名空间删除键
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.exec.Execute(ctx, sqlexec.Statement(
		`DELETE FROM system_meta WHERE namespace = ? AND key = ?`, namespace, key))
	if err != nil {
		return fmt.Errorf("删除失败: %w", err)
	}
	return nil
}

// GetAll 获取指定命名空间的所有键值对
func (s *Store) GetAll(ctx context.Context, namespace string) (map[string]string, error) {
	res, err := s.exec.Execute(ctx, sqlexec.Statement(
		`SELECT key, value FROM system_meta WHERE namespace = ?`, namespace))
	if err != nil {
		return nil, fmt.Errorf("查询失败: %w", err)
	}
	result := make(map[string]string, res.Len())
	for res.Next() {
		row := res.Row()
		result[row.String("key")] = row.String("value")
	}
	return result, nil
}

// CheckCompatible 检查当前程序版本能否打开该数据库，需在结构迁移之前调用
// 低于 min_compatible_version 时返回 ErrIncompatibleVersion。
// 版本号为空或无法解析（如开发构建）时不做限制。
func (s *Store) CheckCompatible(ctx context.Context, current string) error {
	cur, err := semver.NewVersion(current)
	if err != nil {
		logrus.WithField("component", "metadata").
			WithField("version", current).Debug("版本号无法解析，跳过兼容性检查")
		return nil
	}
	minStr, err := s.Get(ctx, NamespaceApp, KeyMinCompatibleVersion)
	if err != nil {
		return err
	}
	if minStr == "" {
		return nil
	}
	minVer, err := semver.NewVersion(minStr)
	if err != nil {
		return nil
	}
	if cur.LessThan(minVer) {
		return fmt.Errorf("%w: database requires %s, running %s", ErrIncompatibleVersion, minVer, cur)
	}
	return nil
}

// RaiseMinCompatible 记录能够打开该数据库的最低程序版本，只升不降
func (s *Store) RaiseMinCompatible(ctx context.Context, version string) error {
	next, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid min compatible version %q: %w", version, err)
	}
	prevStr, err := s.Get(ctx, NamespaceApp, KeyMinCompatibleVersion)
	if err != nil {
		return err
	}
	if prev, err := semver.NewVersion(prevStr); err == nil && !prev.LessThan(next) {
		return nil
	}
	return s.Set(ctx, NamespaceApp, KeyMinCompatibleVersion, next.String())
}

// RecordAppVersion 记录当前程序版本
// 数据库由更新的版本写入过时只记录警告，不回写较旧的版本号。
// 无法解析的版本号（如开发构建）跳过比较，直接记录。
func (s *Store) RecordAppVersion(ctx context.Context, current string) error {
	logger := logrus.WithField("component", "metadata")
	if current == "" {
		return nil
	}

	if cur, err := semver.NewVersion(current); err == nil {
		prevStr, err := s.Get(ctx, NamespaceApp, KeyAppVersion)
		if err != nil {
			return err
		}
		if prev, err := semver.NewVersion(prevStr); prevStr != "" && err == nil && prev.GreaterThan(cur) {
			logger.WithFields(logrus.Fields{
				"db_version":      prev.String(),
				"running_version": cur.String(),
			}).Warn("数据库由更新版本的程序写入过")
			return nil
		}
	} else {
		logger.WithField("version", current).Debug("版本号无法解析，跳过版本比较")
	}

	return s.Set(ctx, NamespaceApp, KeyAppVersion, current)
}

// 预定义的命名空间常量
const (
	// NamespaceDevice 设备相关信息（如 Sentry 设备 ID）
	NamespaceDevice = "device"
	// NamespaceApp 程序版本信息
	NamespaceApp = "app"
)

// 预定义的键常量
const (
	// KeyDeviceID Sentry 设备标识
	KeyDeviceID = "device_id"
	// KeyAppVersion 最近一次打开数据库的程序版本
	KeyAppVersion = "app_version"
	// KeyMinCompatibleVersion 能够打开该数据库的最低程序版本
	KeyMinCompatibleVersion = "min_compatible_version"
)
