package feature

import (
	"encoding/json"
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// ScalerParams 数值列标准化参数
type ScalerParams struct {
	// Name 列名
	Name string `json:"name"`
	// Mean 均值
	Mean float64 `json:"mean"`
	// Std 总体标准差；训练集上方差为 0 时记为 1
	Std float64 `json:"std"`
}

// Vocabulary 类别列的已排序取值表
type Vocabulary struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// State 拟合后的编码器状态，对应 preprocessor.json。
// 拟合后不可变，可被多个 goroutine 并发读取。
type State struct {
	// Numeric 数值列，按数据集列顺序
	Numeric []ScalerParams `json:"numeric"`
	// Categorical 类别列，按数据集列顺序
	Categorical []Vocabulary `json:"categorical"`
	// FeatureColumns 输出特征名（按向量顺序）
	FeatureColumns []string `json:"feature_columns"`
	// FeatureCount 输出维度
	FeatureCount int `json:"feature_count"`

	// index 类别列 -> 取值 -> 在该列 one-hot 块中的位置
	index map[string]map[string]int
}

func newState(numeric []ScalerParams, categorical []Vocabulary) *State {
	s := &State{
		Numeric:     numeric,
		Categorical: categorical,
	}
	s.FeatureColumns = s.featureNames()
	s.FeatureCount = len(s.FeatureColumns)
	s.buildIndex()
	return s
}

func (s *State) featureNames() []string {
	names := make([]string, 0, len(s.Numeric))
	for _, p := range s.Numeric {
		names = append(names, p.Name)
	}
	for _, v := range s.Categorical {
		for _, c := range v.Categories {
			names = append(names, v.Name+"_"+c)
		}
	}
	return names
}

func (s *State) buildIndex() {
	s.index = make(map[string]map[string]int, len(s.Categorical))
	for _, v := range s.Categorical {
		m := make(map[string]int, len(v.Categories))
		for i, c := range v.Categories {
			m[c] = i
		}
		s.index[v.Name] = m
	}
}

// Dim 输出向量维度
func (s *State) Dim() int {
	return s.FeatureCount
}

// InputColumns 编码器需要的输入字段（数值列在前）
func (s *State) InputColumns() []string {
	cols := make([]string, 0, len(s.Numeric)+len(s.Categorical))
	for _, p := range s.Numeric {
		cols = append(cols, p.Name)
	}
	for _, v := range s.Categorical {
		cols = append(cols, v.Name)
	}
	return cols
}

// MarshalState 序列化编码器状态。float64 经 JSON 往返后逐位一致。
func MarshalState(s *State) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalState 反序列化编码器状态并重建索引
func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeArtifactLoad, "decode preprocessor", err)
	}
	for _, p := range s.Numeric {
		if p.Std == 0 {
			return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeArtifactLoad,
				fmt.Sprintf("preprocessor column %q has zero scale", p.Name))
		}
	}
	return newState(s.Numeric, s.Categorical), nil
}
