package feature

import (
	"fmt"
	"time"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/pkg/conv"
)

// 原始列与派生列名
const (
	ColTransTime = "trans_date_trans_time"
	ColDOB       = "dob"
	ColUnixTime  = "unix_time"
	ColAge       = "age"
	ColHour      = "trans_hour"
	ColDay       = "trans_day"
	ColMonth     = "trans_month"
)

// DropColumns 身份/地址类自由文本列与索引列，永远不进入编码器
var DropColumns = []string{
	"Unnamed: 0", "first", "last", "street", "city", "cc_num", "trans_num",
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// Deriver 在编码之前做确定性的列派生：
//   - 删除 DropColumns
//   - trans_date_trans_time -> trans_hour, trans_day, trans_month，删除原列
//   - dob -> age（整年，(now - dob) 的整天数 // 365），删除原列
//
// 在线打分的请求只带 unix_time 与 age：缺少 trans_date_trans_time 时用 unix_time（UTC）派生
// 时/日/月，已有 age 时保留。
type Deriver struct {
	now func() time.Time
}

// NewDeriver 创建派生器，now 为 nil 时使用 time.Now
func NewDeriver(now func() time.Time) *Deriver {
	if now == nil {
		now = time.Now
	}
	return &Deriver{now: now}
}

// Dataset 对整个数据集做派生，返回新数据集。
// 新列追加在末尾，顺序为 trans_hour, trans_day, trans_month, age。
func (d *Deriver) Dataset(ds *core.Dataset) (*core.Dataset, error) {
	now := d.now()

	base := ds.Without(DropColumns...)
	hasTime := base.HasColumn(ColTransTime)
	hasDOB := base.HasColumn(ColDOB)

	cols := make([]core.Column, 0, len(base.Columns)+4)
	for _, c := range base.Columns {
		if c.Name == ColTransTime || c.Name == ColDOB {
			continue
		}
		cols = append(cols, c)
	}
	if hasTime {
		cols = append(cols,
			core.Column{Name: ColHour, Kind: core.KindNumeric},
			core.Column{Name: ColDay, Kind: core.KindNumeric},
			core.Column{Name: ColMonth, Kind: core.KindNumeric},
		)
	}
	if hasDOB {
		cols = append(cols, core.Column{Name: ColAge, Kind: core.KindNumeric})
	}

	rows := make([]core.Record, len(base.Rows))
	for i, r := range base.Rows {
		out, err := derive(r, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = out
	}
	return &core.Dataset{Columns: cols, Rows: rows}, nil
}

// Record 对单条记录做派生（在线打分路径），输入记录不被修改。
func (d *Deriver) Record(r core.Record) (core.Record, error) {
	out := r.Clone()
	for _, c := range DropColumns {
		delete(out, c)
	}
	return derive(out, d.now())
}

// derive 在 r 上原地派生，r 必须是调用方拥有的副本
func derive(r core.Record, now time.Time) (core.Record, error) {
	if raw, ok := r[ColTransTime]; ok {
		ts, err := parseTime(raw)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
				"parse "+ColTransTime, err)
		}
		putTimeParts(r, ts)
		delete(r, ColTransTime)
	} else if raw, ok := r[ColUnixTime]; ok && !hasTimeParts(r) {
		sec, ok := conv.ToFloat64(raw)
		if !ok {
			return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
				fmt.Sprintf("%s %v is not numeric", ColUnixTime, raw))
		}
		putTimeParts(r, time.Unix(int64(sec), 0).UTC())
	}

	if raw, ok := r[ColDOB]; ok {
		dob, err := parseTime(raw)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
				"parse "+ColDOB, err)
		}
		r[ColAge] = Age(dob, now)
		delete(r, ColDOB)
	}
	return r, nil
}

func putTimeParts(r core.Record, ts time.Time) {
	r[ColHour] = int64(ts.Hour())
	r[ColDay] = int64(ts.Day())
	r[ColMonth] = int64(ts.Month())
}

func hasTimeParts(r core.Record) bool {
	_, h := r[ColHour]
	_, d := r[ColDay]
	_, m := r[ColMonth]
	return h && d && m
}

// Age 返回 floor(floor((now - dob) / 24h) / 365)
func Age(dob, now time.Time) int64 {
	days := floorDiv(int64(now.Sub(dob)), int64(24*time.Hour))
	return floorDiv(days, 365)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func parseTime(v any) (time.Time, error) {
	s, ok := conv.ToString(v)
	if !ok {
		return time.Time{}, fmt.Errorf("value %v is not a string", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
