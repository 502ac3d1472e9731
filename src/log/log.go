// Package log 配置全局 logrus Logger
// watcherdb 每次只执行一条命令，日志级别在启动时确定，不在运行中变化。
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/configs"
)

const (
	filePrefix = "watcher-go"
	dayLayout  = "2006-01-02"
)

// New 按配置设置全局 Logger 的输出、格式与级别
// 返回的 close 关闭打开的日志文件，应在程序退出前调用。
func New(cfg *configs.Config) (*logrus.Logger, func(), error) {
	if cfg == nil {
		cfg = configs.NewConfig()
	}
	var (
		writers = []io.Writer{os.Stderr}
		closers []io.Closer
	)

	dir := cfg.Log.OutPutFolder
	if cfg.Log.SaveEveryLog || cfg.Log.SaveLastLog {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("log folder %s: %w", dir, err)
		}
	}
	if cfg.Log.SaveEveryLog {
		name := filepath.Join(dir, time.Now().Format("run-2006-01-02-15-04-05")+".log")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", name, err)
		}
		writers = append(writers, f)
		closers = append(closers, f)
	}
	if cfg.Log.SaveLastLog {
		daily := newDailyFile(dir, filePrefix, cfg.Log.RotateDays)
		writers = append(writers, daily)
		closers = append(closers, daily)
	}

	logger := logrus.StandardLogger()
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetReportCaller(cfg.Debug)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	closeAll := func() {
		logger.SetOutput(os.Stderr)
		for _, c := range closers {
			_ = c.Close()
		}
	}
	return logger, closeAll, nil
}

// dailyFile 每天一个文件 <prefix>-YYYY-MM-DD.log，超过 keepDays 的旧文件在切换时删除
type dailyFile struct {
	dir      string
	prefix   string
	keepDays int
	now      func() time.Time
	pattern  *regexp.Regexp

	mu   sync.Mutex
	day  string
	file *os.File
}

func newDailyFile(dir, prefix string, keepDays int) *dailyFile {
	return &dailyFile{
		dir:      dir,
		prefix:   prefix,
		keepDays: keepDays,
		now:      time.Now,
		pattern:  regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d{4}-\d{2}-\d{2})\.log$`),
	}
}

func (d *dailyFile) path(day string) string {
	return filepath.Join(d.dir, d.prefix+"-"+day+".log")
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if day := now.Format(dayLayout); d.file == nil || day != d.day {
		if err := d.switchTo(day); err != nil {
			return 0, err
		}
		d.prune(now)
	}
	return d.file.Write(p)
}

func (d *dailyFile) switchTo(day string) error {
	if d.file != nil {
		_ = d.file.Close()
		d.file = nil
	}
	f, err := os.OpenFile(d.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	d.file, d.day = f, day
	return nil
}

func (d *dailyFile) prune(now time.Time) {
	if d.keepDays <= 0 {
		return
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -d.keepDays)
	for _, e := range entries {
		m := d.pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if t, err := time.ParseInLocation(dayLayout, m[1], now.Location()); err == nil && t.Before(cutoff) {
			_ = os.Remove(filepath.Join(d.dir, e.Name()))
		}
	}
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
