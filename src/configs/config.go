package configs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/watcher-go/watcher-go/src/consts"
)

type Log struct {
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	SaveLastLog  bool   `yaml:"save_last_log" json:"save_last_log"`
	SaveEveryLog bool   `yaml:"save_every_log" json:"save_every_log"`
	// RotateDays 指定按"天"为单位滚动日志时，最多保留的天数（<=0 表示不清理）
	RotateDays int `yaml:"rotate_days" json:"rotate_days"`
}

// Database 数据库配置
type Database struct {
	// File 数据库文件路径，相对路径基于 AppDataPath
	File string `yaml:"file" json:"file"`
	// BusyTimeout 打开连接时设置的 busy_timeout，作为重试循环之下的兜底等待
	BusyTimeout time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	// MaxAttempts 遇到数据库锁定时的最大尝试次数（含首次）
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// RetryInterval 两次尝试之间的固定间隔
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
	// JournalMode 日志模式，留空使用 SQLite 默认值
	JournalMode string `yaml:"journal_mode,omitempty" json:"journal_mode,omitempty"`
	// BackupDir 备份目录，相对路径基于 AppDataPath
	BackupDir string `yaml:"backup_dir" json:"backup_dir"`
	// RecoverIncomplete 启动时发现未完成的迁移是否自动从备份恢复
	RecoverIncomplete bool `yaml:"recover_incomplete" json:"recover_incomplete"`
}

var defaultDatabase = Database{
	File:              consts.DefaultDBFileName,
	BusyTimeout:       30 * time.Second,
	MaxAttempts:       5,
	RetryInterval:     time.Second,
	BackupDir:         consts.DefaultBackupDir,
	RecoverIncomplete: false,
}

var validJournalModes = []string{"", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}

func (d *Database) verify() error {
	if strings.TrimSpace(d.File) == "" {
		return fmt.Errorf("数据库文件路径不能为空")
	}
	if d.MaxAttempts <= 0 {
		return fmt.Errorf("数据库最大尝试次数必须大于 0")
	}
	if d.RetryInterval < 0 || d.BusyTimeout < 0 {
		return fmt.Errorf("数据库等待时间不能为负数")
	}
	mode := strings.ToUpper(d.JournalMode)
	for _, m := range validJournalModes {
		if m == mode {
			return nil
		}
	}
	return fmt.Errorf("无效的 journal_mode: %s", d.JournalMode)
}

// QualityProfile 画质配置，决定搜索结果的排序方式
type QualityProfile struct {
	PreferSmaller bool `yaml:"prefer_smaller" json:"prefer_smaller"`
}

type Quality struct {
	Profiles map[string]QualityProfile `yaml:"profiles" json:"profiles"`
}

// Sentry 错误监控配置
type Sentry struct {
	Enable      bool   `yaml:"enable" json:"enable"`
	DSN         string `yaml:"dsn" json:"dsn"`
	Environment string `yaml:"environment" json:"environment"`
}

type Config struct {
	File  string `yaml:"-" json:"-"`
	Debug bool   `yaml:"debug" json:"debug"`

	// AppDataPath 应用数据目录，数据库与备份都位于其下
	AppDataPath string   `yaml:"app_data_path" json:"app_data_path"`
	Log         Log      `yaml:"log" json:"log"`
	Database    Database `yaml:"database" json:"database"`
	Quality     Quality  `yaml:"quality" json:"quality"`
	Sentry      Sentry   `yaml:"sentry" json:"sentry"`
}

// 使用 atomic.Value 存放当前配置指针，避免并发读写造成 data race
var config atomic.Value // stores *Config

var currentDebug atomic.Bool

func SetCurrentConfig(cfg *Config) {
	if cfg == nil {
		config.Store((*Config)(nil))
		currentDebug.Store(false)
		return
	}
	config.Store(cfg)
	currentDebug.Store(cfg.Debug)
}

func GetCurrentConfig() *Config {
	v := config.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// IsDebug 提供并发安全、低开销的 Debug 值读取
func IsDebug() bool {
	return currentDebug.Load()
}

var defaultConfig = Config{
	Debug:       false,
	AppDataPath: "",
	Log: Log{
		OutPutFolder: "./",
		SaveLastLog:  true,
		SaveEveryLog: false,
		RotateDays:   7,
	},
	Database: defaultDatabase,
	Quality: Quality{
		Profiles: map[string]QualityProfile{
			"Default": {PreferSmaller: false},
		},
	},
	Sentry: Sentry{
		Enable:      false,
		Environment: "production",
	},
}

func NewConfig() *Config {
	config := defaultConfig
	config.Quality.Profiles = map[string]QualityProfile{}
	for k, v := range defaultConfig.Quality.Profiles {
		config.Quality.Profiles[k] = v
	}
	newConfigPostProcess(&config)
	return &config
}

func newConfigPostProcess(c *Config) {
	if c.AppDataPath == "" {
		if isInContainer() {
			c.AppDataPath = "/srv/watcher-go"
		} else {
			c.AppDataPath = ".appdata"
		}
	}
	if c.Quality.Profiles == nil {
		c.Quality.Profiles = map[string]QualityProfile{}
	}
}

// Verify will return an error when this config has problem.
func (c *Config) Verify() error {
	if c == nil {
		return fmt.Errorf("配置不存在")
	}
	if strings.TrimSpace(c.AppDataPath) == "" {
		return fmt.Errorf("app_data_path 不能为空")
	}
	if err := c.Database.verify(); err != nil {
		return err
	}
	return nil
}

// DBPath 返回数据库文件的实际路径
func (c *Config) DBPath() string {
	return c.resolve(c.Database.File)
}

// BackupPath 返回备份目录的实际路径
func (c *Config) BackupPath() string {
	return c.resolve(c.Database.BackupDir)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.AppDataPath, p)
}

// PreferSmaller 返回画质配置是否偏好较小的文件，未知配置按 false 处理
func (c *Config) PreferSmaller(quality string) bool {
	if p, ok := c.Quality.Profiles[quality]; ok {
		return p.PreferSmaller
	}
	return false
}

// ApplyEnv 使用 WATCHER_* 环境变量覆盖配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv("WATCHER_APP_DATA_PATH"); v != "" {
		c.AppDataPath = v
	}
	if v := os.Getenv("WATCHER_DB_FILE"); v != "" {
		c.Database.File = v
	}
	if v := os.Getenv("WATCHER_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Debug = true
	}
	if v := os.Getenv("WATCHER_SENTRY_DSN"); v != "" {
		c.Sentry.DSN = v
	}
}

func NewConfigWithBytes(b []byte) (*Config, error) {
	config := *NewConfig()
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, err
	}
	newConfigPostProcess(&config)
	return &config, nil
}

func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("can`t open file: %s: %w%s", file, err, formatHints(readFailureHints(file, err)))
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = file
	return config, nil
}

// Marshal 将配置连同注释写回文件
func (c *Config) Marshal() error {
	if c.File == "" {
		return errors.New("config path not set")
	}

	var newNode yaml.Node
	tempBytes, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(tempBytes, &newNode); err != nil {
		return err
	}

	DecorateConfigNode(&newNode)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&newNode); err != nil {
		return err
	}

	return os.WriteFile(c.File, buf.Bytes(), 0644)
}

func isInContainer() bool {
	if os.Getenv("IS_DOCKER") != "" {
		return true
	}
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
