//go:generate go run go.uber.org/mock/mockgen -package sqldb -destination mock_test.go github.com/watcher-go/watcher-go/src/sqldb Executor

// Package sqldb 提供按表操作数据的通用接口
// 所有值都以 ? 占位符绑定；表名与列名无法绑定，先校验再加引号拼接。
package sqldb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/watcher-go/watcher-go/src/pkg/schema"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

// Executor 执行语句的接口，由 *sqlexec.Executor 实现
type Executor interface {
	Execute(ctx context.Context, cmd sqlexec.Command) (*sqlexec.Result, error)
}

// Ident 行标识，必须且只能设置一个字段
type Ident struct {
	IMDBID     string
	GUID       string
	DownloadID string
}

// resolve 返回标识列与值
func (i Ident) resolve(allowDownloadID bool) (string, string, error) {
	var col, val string
	n := 0
	if i.IMDBID != "" {
		col, val = "imdbid", i.IMDBID
		n++
	}
	if i.GUID != "" {
		col, val = "guid", i.GUID
		n++
	}
	if i.DownloadID != "" {
		if !allowDownloadID {
			return "", "", fmt.Errorf("%w: downloadid is not accepted here", ErrIdentification)
		}
		col, val = "downloadid", i.DownloadID
		n++
	}
	if n != 1 {
		return "", "", fmt.Errorf("%w: got %d", ErrIdentification, n)
	}
	return col, val, nil
}

// Match 等值条件 column = value
type Match struct {
	Column string
	Value  any
}

// Order 排序条件
type Order struct {
	Column string
	Desc   bool
}

// Accessor 通用的按表读写接口
type Accessor struct {
	exec         Executor
	catalog      *schema.Catalog
	introspector *schema.Introspector
}

// NewAccessor 创建 Accessor，introspector 为 nil 时使用 exec 新建
func NewAccessor(exec Executor, catalog *schema.Catalog, introspector *schema.Introspector) *Accessor {
	if introspector == nil {
		introspector = schema.NewIntrospector(exec)
	}
	return &Accessor{
		exec:         exec,
		catalog:      catalog,
		introspector: introspector,
	}
}

func logger(table string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"component": "sqldb",
		"table":     table,
	})
}

// Write 插入一行
func (a *Accessor) Write(ctx context.Context, table string, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}
	qt, err := schema.Quote(table)
	if err != nil {
		return err
	}
	cols := a.orderColumns(table, keys(fields))
	qcols, err := quoteAll(cols)
	if err != nil {
		return err
	}
	if err := a.checkColumns(ctx, table, cols); err != nil {
		return err
	}
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = fields[c]
	}

	logger(table).Info("写入数据")
	_, err = a.exec.Execute(ctx, sqlexec.Statement(insertSQL(qt, qcols), args...))
	return err
}

// WriteBatch 在一个事务中插入多行，rows 为空时不执行任何语句
// 列取所有行的键的并集（按声明顺序），任一行出现未知列时整批不写入；行中缺少的列写入 NULL。
func (a *Accessor) WriteBatch(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	qt, err := schema.Quote(table)
	if err != nil {
		return err
	}
	cols := a.orderColumns(table, unionKeys(rows))
	if len(cols) == 0 {
		return ErrNoFields
	}
	qcols, err := quoteAll(cols)
	if err != nil {
		return err
	}
	if err := a.checkColumns(ctx, table, cols); err != nil {
		return err
	}

	params := make([][]any, len(rows))
	for i, row := range rows {
		args := make([]any, len(cols))
		for j, c := range cols {
			args[j] = row[c]
		}
		params[i] = args
	}

	logger(table).WithField("rows", len(rows)).Info("批量写入数据")
	_, err = a.exec.Execute(ctx, sqlexec.Batch(insertSQL(qt, qcols), params))
	return err
}

// WriteSearchResults 批量写入搜索结果
func (a *Accessor) WriteSearchResults(ctx context.Context, rows []map[string]any) error {
	return a.WriteBatch(ctx, TableSearchResults, rows)
}

// Update 按 imdbid 或 guid 更新一列
func (a *Accessor) Update(ctx context.Context, table, column string, value any, id Ident) error {
	idCol, idVal, err := id.resolve(false)
	if err != nil {
		return err
	}
	qt, err := schema.Quote(table)
	if err != nil {
		return err
	}
	qc, err := schema.Quote(column)
	if err != nil {
		return err
	}

	logger(table).WithFields(logrus.Fields{
		"column": column,
		idCol:    idVal,
	}).Info("更新数据")
	_, err = a.exec.Execute(ctx, sqlexec.Statement(
		fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", qt, qc, `"`+idCol+`"`), value, idVal))
	return err
}

// Delete 删除满足条件的行，返回删除的行数
func (a *Accessor) Delete(ctx context.Context, table string, m Match) (int64, error) {
	qt, where, err := target(table, m)
	if err != nil {
		return 0, err
	}
	logger(table).WithField(m.Column, m.Value).Info("删除数据")
	res, err := a.exec.Execute(ctx, sqlexec.Statement(
		fmt.Sprintf("DELETE FROM %s WHERE %s", qt, where), m.Value))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// RowExists 判断是否存在满足条件的行
// 没有匹配时返回 false, nil；表不存在等存储错误通过 error 返回。
func (a *Accessor) RowExists(ctx context.Context, table string, m Match) (bool, error) {
	qt, where, err := target(table, m)
	if err != nil {
		return false, err
	}
	res, err := a.exec.Execute(ctx, sqlexec.Statement(
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", qt, where), m.Value))
	if err != nil {
		return false, err
	}
	return res.Len() > 0, nil
}

// RowExistsByIdent 按 imdbid、guid 或 downloadid 判断行是否存在
func (a *Accessor) RowExistsByIdent(ctx context.Context, table string, id Ident) (bool, error) {
	col, val, err := id.resolve(true)
	if err != nil {
		return false, err
	}
	return a.RowExists(ctx, table, Match{Column: col, Value: val})
}

// SelectAll 返回表中所有行
func (a *Accessor) SelectAll(ctx context.Context, table string, orders ...Order) ([]sqlexec.Row, error) {
	qt, err := schema.Quote(table)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(orders)
	if err != nil {
		return nil, err
	}
	res, err := a.exec.Execute(ctx, sqlexec.Statement(fmt.Sprintf("SELECT * FROM %s%s", qt, orderBy)))
	if err != nil {
		return nil, err
	}
	return res.Rows(), nil
}

// SelectWhere 返回满足条件的所有行
func (a *Accessor) SelectWhere(ctx context.Context, table string, m Match, orders ...Order) ([]sqlexec.Row, error) {
	qt, where, err := target(table, m)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(orders)
	if err != nil {
		return nil, err
	}
	res, err := a.exec.Execute(ctx, sqlexec.Statement(
		fmt.Sprintf("SELECT * FROM %s WHERE %s%s", qt, where, orderBy), m.Value))
	if err != nil {
		return nil, err
	}
	return res.Rows(), nil
}

// SelectOne 返回满足条件的第一行，没有时返回 ErrNoRows
func (a *Accessor) SelectOne(ctx context.Context, table string, m Match) (sqlexec.Row, error) {
	qt, where, err := target(table, m)
	if err != nil {
		return nil, err
	}
	res, err := a.exec.Execute(ctx, sqlexec.Statement(
		fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", qt, where), m.Value))
	if err != nil {
		return nil, err
	}
	row, ok := res.First()
	if !ok {
		return nil, ErrNoRows
	}
	return row, nil
}

// SelectDistinct 返回满足条件的行中 column 的不重复值，没有时返回 ErrNoRows
func (a *Accessor) SelectDistinct(ctx context.Context, table, column string, m Match) ([]any, error) {
	qt, where, err := target(table, m)
	if err != nil {
		return nil, err
	}
	qc, err := schema.Quote(column)
	if err != nil {
		return nil, err
	}
	res, err := a.exec.Execute(ctx, sqlexec.Statement(
		fmt.Sprintf("SELECT DISTINCT %s AS v FROM %s WHERE %s", qc, qt, where), m.Value))
	if err != nil {
		return nil, err
	}
	if res.Len() == 0 {
		return nil, ErrNoRows
	}
	values := make([]any, 0, res.Len())
	for res.Next() {
		values = append(values, res.Row().Value("v"))
	}
	return values, nil
}

// checkColumns 检查列是否都存在于表中，表不存在时交给数据库报错
func (a *Accessor) checkColumns(ctx context.Context, table string, cols []string) error {
	live, err := a.introspector.Columns(ctx, table)
	if err != nil {
		return err
	}
	if len(live) == 0 {
		return nil
	}
	t := schema.TableSchema{Name: table, Columns: live}
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, c)
		}
	}
	return nil
}

// orderColumns 已声明的列按声明顺序在前，其余按字母顺序
func (a *Accessor) orderColumns(table string, cols []string) []string {
	sort.Strings(cols)
	if a.catalog == nil {
		return cols
	}
	declared, ok := a.catalog.Table(table)
	if !ok {
		return cols
	}
	want := make(map[string]bool, len(cols))
	for _, c := range cols {
		want[c] = true
	}
	ordered := make([]string, 0, len(cols))
	for _, c := range declared.ColumnNames() {
		if want[c] {
			ordered = append(ordered, c)
			delete(want, c)
		}
	}
	for _, c := range cols {
		if want[c] {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func target(table string, m Match) (string, string, error) {
	qt, err := schema.Quote(table)
	if err != nil {
		return "", "", err
	}
	qc, err := schema.Quote(m.Column)
	if err != nil {
		return "", "", err
	}
	return qt, qc + " = ?", nil
}

func orderClause(orders []Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		qc, err := schema.Quote(o.Column)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = qc + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func insertSQL(quotedTable string, quotedCols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(quotedCols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quotedTable, strings.Join(quotedCols, ", "), marks)
}

func quoteAll(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := schema.Quote(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func unionKeys(rows []map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
