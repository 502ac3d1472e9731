package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcher-go/watcher-go/src/pkg/migration"
	"github.com/watcher-go/watcher-go/src/pkg/schema"
)

// writeConfig 写入测试配置，日志只输出到 stderr
func writeConfig(t *testing.T, appData string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := fmt.Sprintf(`app_data_path: %q
log:
  out_put_folder: %q
  save_last_log: false
  save_every_log: false
`, appData, dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_Commands(t *testing.T) {
	appData := t.TempDir()
	conf := writeConfig(t, appData)
	textfile := filepath.Join(t.TempDir(), "watcher.prom")
	base := []string{"-c", conf, "--env-file", ""}

	assert.Equal(t, 0, run(append(base, "migrate")))
	assert.FileExists(t, filepath.Join(appData, "watcher.sqlite"))

	assert.Equal(t, 0, run(append(base, "diff")))
	assert.Equal(t, 0, run(append(base, "--metrics-textfile", textfile, "backup")))
	assert.FileExists(t, textfile)

	backups, err := migration.NewBackupManager(filepath.Join(appData, "watcher.sqlite"), filepath.Join(appData, "db")).ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	assert.Equal(t, 0, run(append(base, "backup", "--list")))
	assert.Equal(t, 0, run(append(base, "history", "--limit", "5")))
	assert.Equal(t, 0, run(append(base, "recover")))
	assert.Equal(t, 0, run(append(base, "version")))
}

func TestRun_Errors(t *testing.T) {
	conf := writeConfig(t, t.TempDir())
	base := []string{"-c", conf, "--env-file", ""}

	assert.Equal(t, 2, run(append(base, "no-such-command")))
	// 数据库文件不存在
	assert.Equal(t, 1, run(append(base, "diff")))
	// 没有可用的备份
	assert.Equal(t, 1, run(append(base, "recover")))
	assert.Equal(t, 1, run([]string{"-c", filepath.Join(t.TempDir(), "missing.yml"), "version"}))
}

func TestGetConfig(t *testing.T) {
	t.Setenv("WATCHER_APP_DATA_PATH", "/from/env")
	cfg, err := getConfig(&flags{})
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.AppDataPath)

	cfg, err = getConfig(&flags{appData: "/from/flag", debug: true})
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.AppDataPath)
	assert.True(t, cfg.Debug)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WATCHER_DB_FILE=custom.db\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("WATCHER_DB_FILE") })
	require.NoError(t, loadEnvFile(path))

	cfg, err := getConfig(&flags{appData: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Database.File)
}

func TestPrintDiff(t *testing.T) {
	var buf bytes.Buffer
	printDiff(&buf, schema.Diff{})
	assert.Equal(t, "没有差异\n", buf.String())

	buf.Reset()
	printDiff(&buf, schema.Diff{Tables: []schema.TableDiff{
		{Table: "MOVIES", Columns: []schema.Column{{Name: "url", Type: "TEXT"}}},
		{Table: "MARKEDRESULTS", New: true, Columns: []schema.Column{{Name: "guid", Type: "TEXT"}}},
	}})
	assert.Equal(t, "~ MOVIES\n    + url TEXT\n+ MARKEDRESULTS\n    + guid TEXT\n", buf.String())
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "没有迁移记录\n", buf.String())
}
