package pipeline

import (
	"context"
)

// Kind 用于标记 Stage 类型，方便观测/编排（例如按阶段打点）。
type Kind string

const (
	KindIngest    Kind = "ingest"    // 读取训练/测试数据
	KindValidate  Kind = "validate"  // schema 校验
	KindTransform Kind = "transform" // 派生 + 编码
	KindTrain     Kind = "train"     // 训练或超参搜索
	KindEvaluate  Kind = "evaluate"  // 阈值校准与评估
	KindPersist   Kind = "persist"   // 制品落盘
)

// Stage 是训练流水线的最小可扩展单元。
// 统一采用“读写同一个 State”的形态，每个阶段只填充自己负责的字段。
type Stage interface {
	Name() string
	Kind() Kind

	Process(ctx context.Context, st *State) error
}
