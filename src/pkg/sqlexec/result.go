package sqlexec

import (
	"fmt"
	"strconv"
)

// Row 一行查询结果，列名到值的映射
type Row map[string]any

// Value 返回列的原始值
func (r Row) Value(col string) any {
	return r[col]
}

// String 以字符串形式返回列值，NULL 返回空字符串
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 以整数形式返回列值，无法转换时返回 0
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Result 类游标的执行结果
// 查询语句的所有行在重试循环内被完整读出，因此遍历期间不会再遇到锁冲突
type Result struct {
	Columns      []string
	RowsAffected int64

	rows []Row
	pos  int
}

// Next 将游标移动到下一行
func (r *Result) Next() bool {
	if r == nil || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

// Row 返回游标当前所在的行，必须在 Next 返回 true 之后调用
func (r *Result) Row() Row {
	if r == nil || r.pos == 0 || r.pos > len(r.rows) {
		return nil
	}
	return r.rows[r.pos-1]
}

// First 返回第一行
func (r *Result) First() (Row, bool) {
	if r == nil || len(r.rows) == 0 {
		return nil, false
	}
	return r.rows[0], true
}

// Rows 返回全部行
func (r *Result) Rows() []Row {
	if r == nil {
		return nil
	}
	return r.rows
}

// Len 返回行数
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}
