package configs

import "gopkg.in/yaml.v3"

// DecorateConfigNode 将硬编码的中文注释注入到配置节点树中。
func DecorateConfigNode(node *yaml.Node) {
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return
	}

	root.HeadComment = `# 这个配置文件内的注释是自动生成的，请不要手动修改。
# 需要修改注释时，请在 src/configs/config_comments.go 文件内修改。`

	setFieldLineComment(root, "app_data_path", "# 数据库与备份目录的根目录")

	setFieldHeadComment(root, "database", "# 数据库配置")
	dbNode := findNode(root, "database")
	if dbNode != nil {
		setFieldComment(dbNode, "file", "# 数据库文件，相对路径基于 app_data_path", "")
		setFieldComment(dbNode, "busy_timeout", "# 打开数据库时设置的忙等待时间", "")
		setFieldComment(dbNode, "max_attempts",
			`# 数据库被其他写入者锁定时的最大尝试次数（包含首次执行）
# 超过次数后操作视为失败，不会抛出异常`, "")
		setFieldComment(dbNode, "retry_interval", "# 两次尝试之间的固定等待时间", "")
		setFieldComment(dbNode, "backup_dir", "# 迁移前备份数据库的目录，相对路径基于 app_data_path", "")
		setFieldComment(dbNode, "recover_incomplete",
			`# 启动时检测到上次迁移未完成：
# true: 自动从迁移前的备份恢复数据库
# false: 拒绝启动，需要手动处理`, "")
	}

	qualityNode := findNode(root, "quality")
	if qualityNode != nil {
		setFieldComment(qualityNode, "profiles", "# 画质配置，prefer_smaller 为 true 时搜索结果按文件大小升序排列", "")
	}

	setFieldHeadComment(root, "sentry", "# Sentry 错误监控配置（用于收集崩溃日志）")
	sentryNode := findNode(root, "sentry")
	if sentryNode != nil {
		setFieldComment(sentryNode, "enable", "# 是否启用 Sentry 错误监控", "")
		setFieldComment(sentryNode, "dsn", "# Sentry DSN，留空则禁用。申请地址：https://sentry.io/", "")
		setFieldComment(sentryNode, "environment", "# 环境标识：production 或 development", "")
	}
}

func findNode(mapNode *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			return mapNode.Content[i+1]
		}
	}
	return nil
}

func setFieldComment(mapNode *yaml.Node, key, headComment, lineComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			if headComment != "" {
				k.HeadComment = headComment
			}
			if lineComment != "" {
				k.LineComment = lineComment
			}
			return
		}
	}
}

func setFieldLineComment(mapNode *yaml.Node, key, lineComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			k.LineComment = lineComment
			return
		}
	}
}

func setFieldHeadComment(mapNode *yaml.Node, key, headComment string) {
	for i := 0; i < len(mapNode.Content); i += 2 {
		k := mapNode.Content[i]
		if k.Value == key {
			k.HeadComment = headComment
			return
		}
	}
}
