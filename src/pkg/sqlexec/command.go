package sqlexec

import (
	"strings"
)

// Command 一次提交给执行器的执行单元
// 要么是一条带位置参数的语句，要么是一条语句加多行参数（批量插入）
type Command struct {
	SQL   string
	Args  []any
	Batch [][]any

	batch bool
}

// Statement 构造单条语句命令
func Statement(sql string, args ...any) Command {
	return Command{SQL: sql, Args: args}
}

// Batch 构造批量命令，每一行参数执行一次同一条语句
func Batch(sql string, rows [][]any) Command {
	return Command{SQL: sql, Batch: rows, batch: true}
}

// IsBatch 是否为批量命令
func (c Command) IsBatch() bool {
	return c.batch
}

// String 返回用于日志的语句文本（不包含参数值）
func (c Command) String() string {
	return strings.TrimSpace(c.SQL)
}

// returnsRows 判断语句是否会返回结果集
// 跳过开头的注释；带 RETURNING 子句的 INSERT/UPDATE/DELETE 也按查询执行。
func (c Command) returnsRows() bool {
	words := strings.Fields(strings.Map(func(r rune) rune {
		if r == '(' || r == ')' || r == ',' || r == ';' {
			return ' '
		}
		return r
	}, normalizeSQL(c.SQL)))
	if len(words) == 0 {
		return false
	}
	switch strings.ToUpper(words[0]) {
	case "SELECT", "PRAGMA", "WITH", "VALUES", "EXPLAIN":
		return true
	case "INSERT", "REPLACE", "UPDATE", "DELETE":
		for _, w := range words[1:] {
			if strings.EqualFold(w, "RETURNING") {
				return true
			}
		}
	}
	return false
}

// normalizeSQL 把注释替换为空格，并清空引号内的内容（保留引号本身），
// 之后的关键字与占位符扫描不会被注释或字符串中的文本干扰。
func normalizeSQL(query string) string {
	rs := []rune(query)
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			b.WriteRune(' ')
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			i += 2
			for i+1 < len(rs) && !(rs[i] == '*' && rs[i+1] == '/') {
				i++
			}
			i++
			b.WriteRune(' ')
		case r == '\'' || r == '"' || r == '`' || r == '[':
			closing := r
			if r == '[' {
				closing = ']'
			}
			b.WriteRune(r)
			for i++; i < len(rs) && rs[i] != closing; i++ {
				b.WriteRune(' ')
			}
			if i < len(rs) {
				b.WriteRune(closing)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
