package core

import (
	"fmt"

	"github.com/rushteam/fraudkit/pkg/conv"
)

// Record 是一条原始交易记录：字段名 -> 标量值。
// 数值列为 float64/int64，类别列为 string。读取后不再修改。
type Record map[string]any

// Clone 浅拷贝一条记录（值均为标量，浅拷贝即完整拷贝）。
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ColumnKind 列的类型类别，决定编码方式。
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"     // 连续/数值列：标准化
	KindCategorical ColumnKind = "categorical" // 类别列：One-Hot
)

// Column 描述数据集中的一列。
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Dataset 是有序列 + 行记录的表格数据。
// 列顺序决定编码后特征向量的顺序，因此必须保持稳定。
type Dataset struct {
	Columns []Column
	Rows    []Record
}

// Len 返回行数
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// ColumnNames 按顺序返回列名
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Column 按名称查找列
func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn 判断列是否存在
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// Without 返回去掉指定列后的新数据集，原数据集不变。不存在的列被忽略。
func (d *Dataset) Without(names ...string) *Dataset {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	cols := make([]Column, 0, len(d.Columns))
	for _, c := range d.Columns {
		if _, ok := drop[c.Name]; !ok {
			cols = append(cols, c)
		}
	}
	rows := make([]Record, len(d.Rows))
	for i, r := range d.Rows {
		nr := make(Record, len(r))
		for k, v := range r {
			if _, ok := drop[k]; !ok {
				nr[k] = v
			}
		}
		rows[i] = nr
	}
	return &Dataset{Columns: cols, Rows: rows}
}

// Labels 读取二分类标签列，值必须为 0 或 1。
func (d *Dataset) Labels(column string) ([]int, error) {
	if !d.HasColumn(column) {
		return nil, NewDomainError(ModuleDataset, ErrorCodeSchemaMismatch,
			fmt.Sprintf("target column %q missing", column))
	}
	labels := make([]int, len(d.Rows))
	for i, r := range d.Rows {
		v, ok := conv.ToFloat64(r[column])
		if !ok || (v != 0 && v != 1) {
			return nil, NewDomainError(ModuleDataset, ErrorCodeInvalidInput,
				fmt.Sprintf("row %d: label %v is not binary", i, r[column]))
		}
		labels[i] = int(v)
	}
	return labels, nil
}
