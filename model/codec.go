package model

import (
	"encoding/json"
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// FormatGBDT 模型文件格式标识
const FormatGBDT = "fraudkit-gbdt/v1"

type gbdtFile struct {
	Format string `json:"format"`
	*GBDT
}

// MarshalGBDT 序列化模型，float64 经 JSON 往返后逐位一致
func MarshalGBDT(m *GBDT) ([]byte, error) {
	return json.Marshal(gbdtFile{Format: FormatGBDT, GBDT: m})
}

// UnmarshalGBDT 反序列化模型并校验树结构，损坏的模型返回 ARTIFACT_LOAD
func UnmarshalGBDT(data []byte) (*GBDT, error) {
	f := gbdtFile{GBDT: &GBDT{}}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeArtifactLoad, "decode model", err)
	}
	if f.Format != FormatGBDT {
		return nil, corrupt("unknown model format %q", f.Format)
	}
	m := f.GBDT
	if m.NFeatures <= 0 {
		return nil, corrupt("n_features must be positive")
	}
	for k, t := range m.Trees {
		if err := validateTree(t, m.NFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", k, err)
		}
	}
	return m, nil
}

// validateTree 子节点下标必须大于父节点，保证预测时不会越界或死循环
func validateTree(t Tree, nfeat int) error {
	if len(t.Nodes) == 0 {
		return corrupt("empty tree")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= nfeat {
			return corrupt("node %d feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return corrupt("node %d has invalid children", i)
		}
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return core.NewDomainError(core.ModuleModel, core.ErrorCodeArtifactLoad, fmt.Sprintf(format, args...))
}
