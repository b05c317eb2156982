package model

import "context"

// Classifier 是二分类模型的最小抽象：输入编码后的特征矩阵，输出正类概率。
// 具体实现可以是本地 GBDT 或远程 RPC 模型服务。
type Classifier interface {
	Name() string
	PredictProba(ctx context.Context, X [][]float64) ([]float64, error)
}
