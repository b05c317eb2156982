package feature

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/pkg/conv"
)

// Fit 在训练特征集上拟合编码器：
//   - 数值列：Z-score 标准化，参数为总体均值与总体标准差（标准差为 0 时记为 1）
//   - 类别列：One-Hot，取值表按字典序排序
//
// 输出向量为数值列（按列顺序）后接各类别列的 one-hot 块（按列顺序）。
// 同一数据集多次拟合得到完全相同的状态。
func Fit(ds *core.Dataset) (*State, error) {
	if ds.Len() == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInsufficientData,
			"cannot fit preprocessor on an empty dataset")
	}

	numeric := make([]ScalerParams, 0, len(ds.Columns))
	categorical := make([]Vocabulary, 0)

	for _, c := range ds.Columns {
		switch c.Kind {
		case core.KindNumeric:
			p, err := fitScaler(ds, c.Name)
			if err != nil {
				return nil, err
			}
			numeric = append(numeric, p)
		default:
			v, err := fitVocabulary(ds, c.Name)
			if err != nil {
				return nil, err
			}
			categorical = append(categorical, v)
		}
	}
	return newState(numeric, categorical), nil
}

func fitScaler(ds *core.Dataset, name string) (ScalerParams, error) {
	xs := make([]float64, len(ds.Rows))
	for i, r := range ds.Rows {
		v, err := numericValue(r, name)
		if err != nil {
			return ScalerParams{}, fmt.Errorf("row %d: %w", i, err)
		}
		xs[i] = v
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	if std == 0 {
		std = 1
	}
	return ScalerParams{Name: name, Mean: mean, Std: std}, nil
}

func fitVocabulary(ds *core.Dataset, name string) (Vocabulary, error) {
	seen := make(map[string]struct{})
	for i, r := range ds.Rows {
		v, ok := r[name]
		if !ok || v == nil {
			return Vocabulary{}, fmt.Errorf("row %d: %w", i, missingField(name))
		}
		seen[fmt.Sprintf("%v", v)] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return Vocabulary{Name: name, Categories: cats}, nil
}

// Transform 编码整个数据集，返回 len(ds.Rows) x Dim() 的矩阵
func (s *State) Transform(ds *core.Dataset) ([][]float64, error) {
	out := make([][]float64, len(ds.Rows))
	for i, r := range ds.Rows {
		vec, err := s.TransformRecord(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// TransformRecord 编码单条记录。
// 缺少拟合时见过的字段或数值字段不是数字返回 SCHEMA_MISMATCH；
// 未见过的类别取值编码为全 0。
func (s *State) TransformRecord(r core.Record) ([]float64, error) {
	vec := make([]float64, s.FeatureCount)
	for i, p := range s.Numeric {
		v, err := numericValue(r, p.Name)
		if err != nil {
			return nil, err
		}
		vec[i] = (v - p.Mean) / p.Std
	}

	offset := len(s.Numeric)
	for _, voc := range s.Categorical {
		raw, ok := r[voc.Name]
		if !ok || raw == nil {
			return nil, missingField(voc.Name)
		}
		if j, ok := s.index[voc.Name][fmt.Sprintf("%v", raw)]; ok {
			vec[offset+j] = 1
		}
		offset += len(voc.Categories)
	}
	return vec, nil
}

func numericValue(r core.Record, name string) (float64, error) {
	raw, ok := r[name]
	if !ok || raw == nil {
		return 0, missingField(name)
	}
	v, ok := conv.ToFloat64(raw)
	if !ok {
		return 0, core.NewDomainError(core.ModuleFeature, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("field %q value %v is not numeric", name, raw))
	}
	return v, nil
}

func missingField(name string) error {
	return core.NewDomainError(core.ModuleFeature, core.ErrorCodeSchemaMismatch,
		fmt.Sprintf("record missing field %q", name))
}
