package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcher-go/watcher-go/src/configs"
)

func TestDailyFile_WritesDayFile(t *testing.T) {
	dir := t.TempDir()
	d := newDailyFile(dir, "watcher-go", 0)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local) }
	defer d.Close()

	_, err := d.Write([]byte("hello\n"))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "watcher-go-2026-03-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestDailyFile_SwitchesDayAndPrunes(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "watcher-go-2026-02-01.log")
	other := filepath.Join(dir, "unrelated.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))

	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	d := newDailyFile(dir, "watcher-go", 3)
	d.now = func() time.Time { return now }
	defer d.Close()

	_, err := d.Write([]byte("a\n"))
	require.NoError(t, err)
	assert.NoFileExists(t, old)
	assert.FileExists(t, other)

	now = now.Add(2 * time.Minute)
	_, err = d.Write([]byte("b\n"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "watcher-go-2026-03-01.log"))
	content, err := os.ReadFile(filepath.Join(dir, "watcher-go-2026-03-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(content))
}

func TestNew(t *testing.T) {
	cfg := configs.NewConfig()
	cfg.Debug = true
	cfg.Log.OutPutFolder = filepath.Join(t.TempDir(), "logs")
	cfg.Log.SaveLastLog = true
	cfg.Log.SaveEveryLog = false

	logger, closeLog, err := New(cfg)
	require.NoError(t, err)
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetReportCaller(false)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField("component", "test").Info("写入日志文件")
	closeLog()

	matches, err := filepath.Glob(filepath.Join(cfg.Log.OutPutFolder, "watcher-go-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "component=test")
}
