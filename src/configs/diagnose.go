package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// readFailureHints 根据读取配置文件失败的原因给出排查建议
func readFailureHints(file string, err error) []string {
	var hints []string
	switch {
	case errors.Is(err, fs.ErrNotExist):
		hints = append(hints, fmt.Sprintf("文件 %s 不存在，请检查 --config 参数", file))
	case errors.Is(err, fs.ErrPermission):
		mode := "unknown"
		if info, statErr := os.Stat(file); statErr == nil {
			mode = info.Mode().String()
		}
		hints = append(hints, fmt.Sprintf("没有读取 %s 的权限（%s），当前进程 uid=%d", file, mode, os.Getuid()))
		if isInContainer() {
			hints = append(hints, "容器内运行时请确认 PUID/PGID 对配置文件与 app_data_path 均有读写权限")
		}
	}
	return hints
}

// formatHints 将排查建议拼接到错误信息之后
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return "\n  " + strings.Join(hints, "\n  ")
}
