// Package schema 描述数据库表结构，并比较代码中声明的结构与磁盘上的实际结构
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier 表名或列名不是合法的标识符
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier 判断名称能否安全地拼接进语句
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Quote 校验并加上双引号
func Quote(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// quote 用于已经校验过的名称
func quote(name string) string {
	return `"` + name + `"`
}

// Column 列名与声明类型
type Column struct {
	Name string
	Type string
}

// TableSchema 一张表的有序列定义
type TableSchema struct {
	Name    string
	Columns []Column
}

// ColumnNames 按顺序返回列名
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Has 判断是否包含某列（列名不区分大小写，与 SQLite 一致）
func (t TableSchema) Has(column string) bool {
	_, ok := t.Column(column)
	return ok
}

// Column 按名称查找列
func (t TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// CreateSQL 生成建表语句，列类型原样写入，pragma_table_info 读回时保持一致
func (t TableSchema) CreateSQL() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = strings.TrimSpace(quote(c.Name) + " " + c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(t.Name), strings.Join(defs, ", "))
}

// Schema 有序的表集合
type Schema struct {
	Tables []TableSchema
}

// Table 按名称查找表
func (s Schema) Table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableSchema{}, false
}

// TableNames 按顺序返回表名
func (s Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
