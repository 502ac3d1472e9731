package configs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, 5, c.Database.MaxAttempts)
	assert.Equal(t, time.Second, c.Database.RetryInterval)
	assert.Equal(t, 30*time.Second, c.Database.BusyTimeout)
	assert.Equal(t, "db", c.Database.BackupDir)
	assert.NotEmpty(t, c.AppDataPath)
	assert.NoError(t, c.Verify())
}

func TestNewConfigWithBytes(t *testing.T) {
	c, err := NewConfigWithBytes([]byte(`
debug: true
app_data_path: /data/watcher
database:
  file: movies.db
  max_attempts: 3
  retry_interval: 250ms
quality:
  profiles:
    Small:
      prefer_smaller: true
`))
	require.NoError(t, err)
	assert.True(t, c.Debug)
	assert.Equal(t, 3, c.Database.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Database.RetryInterval)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 30*time.Second, c.Database.BusyTimeout)
	assert.Equal(t, filepath.Join("/data/watcher", "movies.db"), c.DBPath())
	assert.Equal(t, filepath.Join("/data/watcher", "db"), c.BackupPath())
	assert.True(t, c.PreferSmaller("Small"))
	assert.False(t, c.PreferSmaller("Unknown"))
}

func TestConfig_AbsoluteDBPath(t *testing.T) {
	c := NewConfig()
	c.AppDataPath = "/data"
	c.Database.File = "/elsewhere/watcher.sqlite"
	assert.Equal(t, "/elsewhere/watcher.sqlite", c.DBPath())
}

func TestConfig_Verify(t *testing.T) {
	var cfg *Config
	assert.Error(t, cfg.Verify())

	cfg = NewConfig()
	assert.NoError(t, cfg.Verify())

	cfg.Database.MaxAttempts = 0
	assert.Error(t, cfg.Verify())
	cfg.Database.MaxAttempts = 5

	cfg.Database.File = " "
	assert.Error(t, cfg.Verify())
	cfg.Database.File = "watcher.sqlite"

	cfg.Database.JournalMode = "bogus"
	assert.Error(t, cfg.Verify())
	cfg.Database.JournalMode = "wal"
	assert.NoError(t, cfg.Verify())
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("WATCHER_DB_FILE", "env.sqlite")
	t.Setenv("WATCHER_DEBUG", "true")
	c := NewConfig()
	c.ApplyEnv()
	assert.Equal(t, "env.sqlite", c.Database.File)
	assert.True(t, c.Debug)
}

func TestConfig_MarshalWithComments(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(file, []byte("debug: false\n"), 0644))

	c, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, file, c.File)
	require.NoError(t, c.Marshal())

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "# 数据库配置"))
	assert.True(t, strings.Contains(string(content), "max_attempts: 5"))
}

func TestNewConfigWithFile_Missing(t *testing.T) {
	_, err := NewConfigWithFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "--config")
}

func TestReadFailureHints(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(file, []byte("debug: true\n"), 0600))

	hints := readFailureHints(file, &os.PathError{Op: "open", Path: file, Err: os.ErrPermission})
	require.NotEmpty(t, hints)
	assert.Contains(t, hints[0], "-rw-------")

	assert.Empty(t, readFailureHints(file, os.ErrClosed))
	assert.Empty(t, formatHints(nil))
	assert.Equal(t, "\n  a\n  b", formatHints([]string{"a", "b"}))
}

func TestCurrentConfig(t *testing.T) {
	defer SetCurrentConfig(nil)
	c := NewConfig()
	c.Debug = true
	SetCurrentConfig(c)
	assert.Same(t, c, GetCurrentConfig())
	assert.True(t, IsDebug())
	SetCurrentConfig(nil)
	assert.Nil(t, GetCurrentConfig())
	assert.False(t, IsDebug())
}
