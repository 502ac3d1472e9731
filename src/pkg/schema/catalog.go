package schema

import (
	"fmt"
	"strings"
)

// RenameRule 列改名规则：迁移时把旧列 Legacy 的数据复制到新列 Column
type RenameRule struct {
	Column string
	Legacy string
}

// Catalog 编译进程序的表结构与改名规则，构造后不可修改
type Catalog struct {
	tables  []TableSchema
	renames map[string][]RenameRule
}

// NewCatalog 校验并构造 Catalog
func NewCatalog(tables []TableSchema, renames map[string][]RenameRule) (*Catalog, error) {
	c := &Catalog{renames: map[string][]RenameRule{}}
	seenTables := map[string]bool{}
	for _, t := range tables {
		if !ValidIdentifier(t.Name) {
			return nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, t.Name)
		}
		key := strings.ToUpper(t.Name)
		if seenTables[key] {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		seenTables[key] = true
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("table %q has no columns", t.Name)
		}

		seenCols := map[string]bool{}
		cols := make([]Column, len(t.Columns))
		for i, col := range t.Columns {
			if !ValidIdentifier(col.Name) {
				return nil, fmt.Errorf("%w: column %q of %q", ErrInvalidIdentifier, col.Name, t.Name)
			}
			ck := strings.ToLower(col.Name)
			if seenCols[ck] {
				return nil, fmt.Errorf("duplicate column %q in table %q", col.Name, t.Name)
			}
			seenCols[ck] = true
			cols[i] = col
		}
		c.tables = append(c.tables, TableSchema{Name: t.Name, Columns: cols})
	}

	for table, rules := range renames {
		t, ok := c.Table(table)
		if !ok {
			return nil, fmt.Errorf("rename rules for undeclared table %q", table)
		}
		for _, r := range rules {
			if !t.Has(r.Column) {
				return nil, fmt.Errorf("rename target %q is not a declared column of %q", r.Column, table)
			}
			if !ValidIdentifier(r.Legacy) {
				return nil, fmt.Errorf("%w: legacy column %q of %q", ErrInvalidIdentifier, r.Legacy, table)
			}
		}
		c.renames[t.Name] = append([]RenameRule(nil), rules...)
	}
	return c, nil
}

// MustCatalog 同 NewCatalog，出错时 panic，用于包级变量
func MustCatalog(tables []TableSchema, renames map[string][]RenameRule) *Catalog {
	c, err := NewCatalog(tables, renames)
	if err != nil {
		panic(err)
	}
	return c
}

// Declared 返回声明的结构
func (c *Catalog) Declared() Schema {
	tables := make([]TableSchema, len(c.tables))
	for i, t := range c.tables {
		tables[i] = TableSchema{Name: t.Name, Columns: append([]Column(nil), t.Columns...)}
	}
	return Schema{Tables: tables}
}

// Table 按名称查找声明的表
func (c *Catalog) Table(name string) (TableSchema, bool) {
	return Schema{Tables: c.tables}.Table(name)
}

// Renames 返回某张表的改名规则
func (c *Catalog) Renames(table string) []RenameRule {
	t, ok := c.Table(table)
	if !ok {
		return nil
	}
	return c.renames[t.Name]
}
