package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// Executor 执行语句的最小接口
type Executor interface {
	Execute(ctx context.Context, cmd sqlexec.Command) (*sqlexec.Result, error)
}

const (
	columnCacheSize   = 64
	columnCacheExpiry = 10 * time.Minute
)

// Introspector 读取磁盘上的实际表结构
type Introspector struct {
	exec  Executor
	cache gcache.Cache
}

func NewIntrospector(exec Executor) *Introspector {
	return &Introspector{
		exec:  exec,
		cache: gcache.New(columnCacheSize).LRU().Expiration(columnCacheExpiry).Build(),
	}
}

// Live 读取所有用户表及其列
func (i *Introspector) Live(ctx context.Context) (Schema, error) {
	res, err := i.exec.Execute(ctx, sqlexec.Statement(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	if err != nil {
		return Schema{}, fmt.Errorf("list tables: %w", err)
	}

	var s Schema
	for _, row := range res.Rows() {
		name := row.String("name")
		cols, err := i.readColumns(ctx, name)
		if err != nil {
			return Schema{}, err
		}
		s.Tables = append(s.Tables, TableSchema{Name: name, Columns: cols})
	}
	return s, nil
}

// Columns 返回一张表的实际列，结果会被缓存
// 表不存在时返回空切片且不缓存。
func (i *Introspector) Columns(ctx context.Context, table string) ([]Column, error) {
	key := strings.ToUpper(table)
	if v, err := i.cache.Get(key); err == nil {
		return v.([]Column), nil
	}
	cols, err := i.readColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		_ = i.cache.Set(key, cols)
	}
	return cols, nil
}

// Invalidate 清空列缓存，表结构变化后调用
func (i *Introspector) Invalidate() {
	i.cache.Purge()
}

func (i *Introspector) readColumns(ctx context.Context, table string) ([]Column, error) {
	res, err := i.exec.Execute(ctx, sqlexec.Statement(
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table))
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	cols := make([]Column, 0, res.Len())
	for res.Next() {
		row := res.Row()
		cols = append(cols, Column{Name: row.String("name"), Type: row.String("type")})
	}
	return cols, nil
}
