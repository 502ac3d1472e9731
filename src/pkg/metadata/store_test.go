package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcher-go/watcher-go/src/pkg/migration"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	exec, err := sqlexec.Open(sqlexec.Options{Path: filepath.Join(t.TempDir(), "watcher.db")})
	require.NoError(t, err)
	t.Cleanup(func() { exec.Close() })
	_, err = migration.ApplyBookkeeping(exec.DB())
	require.NoError(t, err)
	return New(exec)
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v, err := s.Get(ctx, NamespaceDevice, KeyDeviceID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, NamespaceDevice, KeyDeviceID, "abc"))
	require.NoError(t, s.Set(ctx, NamespaceDevice, KeyDeviceID, "def"))
	v, err = s.Get(ctx, NamespaceDevice, KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	// 不同命名空间互不影响
	v, err = s.Get(ctx, NamespaceApp, KeyDeviceID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Delete(ctx, NamespaceDevice, KeyDeviceID))
	v, err = s.Get(ctx, NamespaceDevice, KeyDeviceID)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestStore_GetAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, NamespaceApp, "a", "1"))
	require.NoError(t, s.Set(ctx, NamespaceApp, "b", "2"))
	require.NoError(t, s.Set(ctx, NamespaceDevice, "c", "3"))

	all, err := s.GetAll(ctx, NamespaceApp)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}

func TestRecordAppVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("empty version is ignored", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.RecordAppVersion(ctx, ""))
		v, err := s.Get(ctx, NamespaceApp, KeyAppVersion)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("records and upgrades", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.RecordAppVersion(ctx, "1.2.0"))
		require.NoError(t, s.RecordAppVersion(ctx, "1.3.0"))
		v, err := s.Get(ctx, NamespaceApp, KeyAppVersion)
		require.NoError(t, err)
		assert.Equal(t, "1.3.0", v)
	})

	t.Run("newer database version is kept", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Set(ctx, NamespaceApp, KeyAppVersion, "2.0.0"))
		require.NoError(t, s.RecordAppVersion(ctx, "1.0.0"))
		v, err := s.Get(ctx, NamespaceApp, KeyAppVersion)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", v)
	})

	t.Run("unparsable version is recorded", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Set(ctx, NamespaceApp, KeyMinCompatibleVersion, "9.0.0"))
		require.NoError(t, s.RecordAppVersion(ctx, "dev-build"))
		v, err := s.Get(ctx, NamespaceApp, KeyAppVersion)
		require.NoError(t, err)
		assert.Equal(t, "dev-build", v)
	})
}

func TestCheckCompatible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// 没有记录最低版本时不限制
	require.NoError(t, s.CheckCompatible(ctx, "0.1.0"))

	require.NoError(t, s.Set(ctx, NamespaceApp, KeyMinCompatibleVersion, "1.5.0"))
	assert.ErrorIs(t, s.CheckCompatible(ctx, "1.4.9"), ErrIncompatibleVersion)
	assert.NoError(t, s.CheckCompatible(ctx, "1.5.0"))
	assert.NoError(t, s.CheckCompatible(ctx, "2.0.0"))
	assert.NoError(t, s.CheckCompatible(ctx, ""))
	assert.NoError(t, s.CheckCompatible(ctx, "dev-build"))
}

func TestRaiseMinCompatible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.RaiseMinCompatible(ctx, "1.2.0"))
	v, err := s.Get(ctx, NamespaceApp, KeyMinCompatibleVersion)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v)

	// 不会降低
	require.NoError(t, s.RaiseMinCompatible(ctx, "1.0.0"))
	v, err = s.Get(ctx, NamespaceApp, KeyMinCompatibleVersion)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v)

	require.NoError(t, s.RaiseMinCompatible(ctx, "1.3.0"))
	v, err = s.Get(ctx, NamespaceApp, KeyMinCompatibleVersion)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", v)

	assert.Error(t, s.RaiseMinCompatible(ctx, "not-a-version"))
}

func TestGlobalStore(t *testing.T) {
	s := newTestStore(t)
	Init(s.exec)
	assert.NotNil(t, GetStore())
	Close()
	assert.Nil(t, GetStore())
}
