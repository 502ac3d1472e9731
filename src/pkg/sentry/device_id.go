package sentry

import (
	"context"
	"strings"
	"sync"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/pkg/metadata"
)

// device 匿名设备标识
// 数据库打开之前使用进程内的临时 ID；拿到元数据存储后改用库中保存的 ID，
// 库中没有时把临时 ID 写入，之后不再变化。
var device struct {
	mu        sync.Mutex
	id        string
	persisted bool
}

// DeviceID 返回匿名设备 ID
// store 为 nil 时使用全局元数据存储；两者都没有时返回临时 ID。
func DeviceID(ctx context.Context, store *metadata.Store) string {
	device.mu.Lock()
	defer device.mu.Unlock()

	if device.persisted {
		return device.id
	}
	if device.id == "" {
		device.id = newDeviceID()
	}
	if store == nil {
		store = metadata.GetStore()
	}
	if store == nil {
		return device.id
	}

	logger := logrus.WithField("component", "sentry")
	saved, err := store.Get(ctx, metadata.NamespaceDevice, metadata.KeyDeviceID)
	if err != nil {
		logger.WithError(err).Debug("读取设备 ID 失败")
		return device.id
	}
	if saved != "" {
		device.id = saved
		device.persisted = true
		return device.id
	}
	if err := store.Set(ctx, metadata.NamespaceDevice, metadata.KeyDeviceID, device.id); err != nil {
		logger.WithError(err).Debug("保存设备 ID 失败")
		return device.id
	}
	device.persisted = true
	return device.id
}

// BindStore 数据库打开后调用，让后续事件使用持久化的设备 ID
func BindStore(ctx context.Context, store *metadata.Store) string {
	id := DeviceID(ctx, store)
	setUser(id)
	return id
}

// newDeviceID 生成去掉连字符的 32 位十六进制 UUID
func newDeviceID() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
}
