// watcherdb 数据库维护工具：迁移、对比结构、备份与恢复
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/configs"
	"github.com/watcher-go/watcher-go/src/consts"
	"github.com/watcher-go/watcher-go/src/log"
	watchersentry "github.com/watcher-go/watcher-go/src/pkg/sentry"
)

var (
	// SentryDSN Sentry DSN (编译时注入，请勿在源代码中硬编码)
	// 使用 -ldflags="-X main.SentryDSN=your_dsn" 在编译时注入
	SentryDSN = ""
	// SentryEnv Sentry Environment (编译时注入)
	SentryEnv = "production"
)

// flags 命令行参数
type flags struct {
	conf       string
	envFile    string
	appData    string
	debug      bool
	textfile   string
	fromBackup string
	listOnly   bool
	limit      int
}

func newApp(f *flags) (*kingpin.Application, map[string]func(context.Context, *configs.Config) error) {
	app := kingpin.New("watcherdb", "Watcher-go database maintenance tool.")
	app.Flag("config", "配置文件路径").Short('c').StringVar(&f.conf)
	app.Flag("env-file", "加载 WATCHER_* 环境变量的文件").Default(".env").StringVar(&f.envFile)
	app.Flag("app-data", "覆盖配置中的 app_data_path").StringVar(&f.appData)
	app.Flag("debug", "输出调试日志").BoolVar(&f.debug)
	app.Flag("metrics-textfile", "命令结束后将指标写入该文件（textfile collector 格式）").StringVar(&f.textfile)

	app.Command("migrate", "检查并执行结构迁移").Default()
	app.Command("diff", "对比声明的表结构与数据库中的实际结构，不做修改")
	backupCmd := app.Command("backup", "备份数据库文件")
	backupCmd.Flag("list", "只列出已有的备份").BoolVar(&f.listOnly)
	recoverCmd := app.Command("recover", "从备份恢复数据库，优先使用未完成迁移的备份")
	recoverCmd.Flag("from", "指定备份文件").StringVar(&f.fromBackup)
	historyCmd := app.Command("history", "显示迁移记录")
	historyCmd.Flag("limit", "最多显示的记录数").Default("20").IntVar(&f.limit)
	app.Command("version", "显示版本信息")

	actions := map[string]func(context.Context, *configs.Config) error{
		"migrate": runMigrate,
		"diff":    runDiff,
		"backup": func(ctx context.Context, cfg *configs.Config) error {
			return runBackup(ctx, cfg, f.listOnly)
		},
		"recover": func(ctx context.Context, cfg *configs.Config) error {
			return runRecover(ctx, cfg, f.fromBackup)
		},
		"history": func(ctx context.Context, cfg *configs.Config) error {
			return runHistory(ctx, cfg, f.limit)
		},
		"version": func(context.Context, *configs.Config) error {
			return printVersion(os.Stdout)
		},
	}
	return app, actions
}

// loadEnvFile 加载 env 文件，文件不存在时忽略
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func getConfig(f *flags) (*configs.Config, error) {
	config := configs.NewConfig()
	if f.conf != "" {
		c, err := configs.NewConfigWithFile(f.conf)
		if err != nil {
			return nil, err
		}
		config = c
	}
	config.ApplyEnv()
	if f.appData != "" {
		config.AppDataPath = f.appData
	}
	if f.debug {
		config.Debug = true
	}
	return config, config.Verify()
}

func initSentry(cfg *configs.Config) {
	// DSN 来源优先级：编译时注入 > 配置文件 / 环境变量
	dsn := SentryDSN
	env := SentryEnv
	if dsn == "" && cfg.Sentry.Enable {
		dsn = cfg.Sentry.DSN
		if cfg.Sentry.Environment != "" {
			env = cfg.Sentry.Environment
		}
	}
	if err := watchersentry.Init(dsn, env, consts.AppVersion); err != nil {
		logrus.WithError(err).Warn("Sentry 初始化失败")
	}
}

func run(args []string) int {
	f := &flags{}
	app, actions := newApp(f)
	command, err := app.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	if err := loadEnvFile(f.envFile); err != nil {
		fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", f.envFile, err)
		return 1
	}
	cfg, err := getConfig(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	configs.SetCurrentConfig(cfg)

	_, closeLog, err := log.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	defer closeLog()
	initSentry(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logrus.WithFields(logrus.Fields{
		"component": "watcherdb",
		"command":   command,
	})
	start := time.Now()
	err = actions[command](ctx, cfg)
	if f.textfile != "" {
		if werr := prometheus.WriteToTextfile(f.textfile, prometheus.DefaultGatherer); werr != nil {
			logger.WithError(werr).Warn("写入指标文件失败")
		}
	}
	if err != nil {
		logger.WithError(err).Error("命令执行失败")
		watchersentry.CaptureWithExtras(err, map[string]interface{}{
			"command": command,
			"db_path": cfg.DBPath(),
		})
		return 1
	}
	logger.WithField("elapsed", time.Since(start).String()).Debug("命令完成")
	return 0
}

func main() {
	// 程序退出时刷新 Sentry 事件队列
	defer watchersentry.Flush(2 * time.Second)
	defer watchersentry.Recover()

	code := run(os.Args[1:])
	if code != 0 {
		watchersentry.Flush(2 * time.Second)
		os.Exit(code)
	}
}
