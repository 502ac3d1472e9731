package consts

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	AppName = "Watcher-go"
)

// 默认数据库文件名与备份子目录
const (
	DefaultDBFileName = "watcher.sqlite"
	DefaultBackupDir  = "db"
)

type Info struct {
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	BuildTime  string `json:"build_time"`
	GitHash    string `json:"git_hash"`
	Pid        int    `json:"pid"`
	Platform   string `json:"platform"`
	GoVersion  string `json:"go_version"`
	IsDocker   string `json:"is_docker"`
	ExePath    string `json:"exe_path"`
}

var (
	BuildTime  string
	AppVersion string
	GitHash    string
)

// GetAppInfo 返回应用信息
// 注意：必须使用函数而非变量，因为 AppVersion 等字段是通过 -ldflags 在链接阶段注入的
func GetAppInfo() Info {
	exePath := ""
	if p, err := os.Executable(); err == nil {
		if absPath, err := filepath.Abs(p); err == nil {
			exePath = absPath
		} else {
			exePath = p
		}
	}

	return Info{
		AppName:    AppName,
		AppVersion: AppVersion,
		BuildTime:  BuildTime,
		GitHash:    GitHash,
		Pid:        os.Getpid(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		GoVersion:  runtime.Version(),
		IsDocker:   os.Getenv("IS_DOCKER"),
		ExePath:    exePath,
	}
}
