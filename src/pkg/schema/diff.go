package schema

// TableDiff 一张表缺少的列
type TableDiff struct {
	Table   string
	Columns []Column
	// New 表在磁盘上不存在
	New bool
}

// Diff 声明结构与实际结构的差异，只包含新增，不包含删除或类型变化
type Diff struct {
	Tables []TableDiff
}

// Empty 没有差异时无需迁移
func (d Diff) Empty() bool {
	return len(d.Tables) == 0
}

// Table 返回某张表的差异
func (d Diff) Table(name string) (TableDiff, bool) {
	for _, t := range d.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableDiff{}, false
}

// ColumnCount 差异中的列总数
func (d Diff) ColumnCount() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.Columns)
	}
	return n
}

// Existing 返回磁盘上已存在、需要改表的差异
func (d Diff) Existing() []TableDiff {
	var out []TableDiff
	for _, t := range d.Tables {
		if !t.New {
			out = append(out, t)
		}
	}
	return out
}

// Missing 返回磁盘上不存在、需要新建的表
func (d Diff) Missing() []TableDiff {
	var out []TableDiff
	for _, t := range d.Tables {
		if t.New {
			out = append(out, t)
		}
	}
	return out
}

// ComputeDiff 按 (表, 列) 计算 declared 中有而 live 中没有的部分
// 列类型不同不算差异；live 中多出的表和列也不算差异。
func ComputeDiff(declared, live Schema) Diff {
	var d Diff
	for _, t := range declared.Tables {
		lt, ok := live.Table(t.Name)
		if !ok {
			d.Tables = append(d.Tables, TableDiff{
				Table:   t.Name,
				Columns: append([]Column(nil), t.Columns...),
				New:     true,
			})
			continue
		}
		var missing []Column
		for _, c := range t.Columns {
			if !lt.Has(c.Name) {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			d.Tables = append(d.Tables, TableDiff{Table: t.Name, Columns: missing})
		}
	}
	return d
}
