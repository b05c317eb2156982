package dataset

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/fraudkit/core"
)

// DefaultTargetColumn 标签列
const DefaultTargetColumn = "is_fraud"

// Validator 在任何变换之前校验训练/测试集的 schema
type Validator struct {
	TargetColumn string
	logger       zerolog.Logger
}

func NewValidator(targetColumn string, logger zerolog.Logger) *Validator {
	if targetColumn == "" {
		targetColumn = DefaultTargetColumn
	}
	return &Validator{TargetColumn: targetColumn, logger: logger}
}

// Validate 校验：
//   - 训练集与测试集列集合一致（顺序无关）
//   - 训练集包含目标列
//
// 通过后记录缺失值数量和类别分布。
func (v *Validator) Validate(train, test *core.Dataset) error {
	v.logger.Info().Msg("data validation started")

	if missing, extra := diffColumns(train, test); len(missing) > 0 || len(extra) > 0 {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("train-test schema mismatch (missing in test: %v, extra in test: %v)", missing, extra))
	}
	if !train.HasColumn(v.TargetColumn) {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("target column %q missing", v.TargetColumn))
	}

	v.logger.Info().Int("train_nulls", CountNulls(train)).Int("test_nulls", CountNulls(test)).Msg("null check")

	dist := ClassDistribution(train, v.TargetColumn)
	ev := v.logger.Info()
	for label, n := range dist {
		ev = ev.Int("class_"+label, n)
	}
	ev.Msg("class distribution")

	v.logger.Info().Msg("data validation completed")
	return nil
}

// diffColumns 返回 train 有而 test 没有的列、test 有而 train 没有的列（均排序）
func diffColumns(train, test *core.Dataset) (missing, extra []string) {
	trainSet := make(map[string]struct{}, len(train.Columns))
	for _, c := range train.Columns {
		trainSet[c.Name] = struct{}{}
	}
	testSet := make(map[string]struct{}, len(test.Columns))
	for _, c := range test.Columns {
		testSet[c.Name] = struct{}{}
		if _, ok := trainSet[c.Name]; !ok {
			extra = append(extra, c.Name)
		}
	}
	for name := range trainSet {
		if _, ok := testSet[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

// CountNulls 统计所有缺失单元格
func CountNulls(ds *core.Dataset) int {
	n := 0
	for _, r := range ds.Rows {
		for _, c := range ds.Columns {
			if v, ok := r[c.Name]; !ok || v == nil {
				n++
			}
		}
	}
	return n
}

// ClassDistribution 统计目标列各取值的数量，key 为取值的字符串形式
func ClassDistribution(ds *core.Dataset, target string) map[string]int {
	dist := make(map[string]int)
	for _, r := range ds.Rows {
		dist[fmt.Sprintf("%v", r[target])]++
	}
	return dist
}
