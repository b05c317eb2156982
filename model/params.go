package model

import (
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// Params GBDT 训练参数
type Params struct {
	NEstimators     int     `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	Subsample       float64 `json:"subsample" yaml:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree" yaml:"colsample_bytree"`
	// ScalePosWeight 正类样本权重，负类权重恒为 1
	ScalePosWeight float64 `json:"scale_pos_weight" yaml:"scale_pos_weight"`
	// Lambda L2 正则
	Lambda float64 `json:"lambda" yaml:"lambda"`
	// MinChildWeight 子节点最小 hessian 和
	MinChildWeight float64 `json:"min_child_weight" yaml:"min_child_weight"`
	// Gamma 分裂最小增益
	Gamma float64 `json:"gamma" yaml:"gamma"`
	Seed  int64   `json:"seed" yaml:"seed"`
}

// DefaultParams 默认训练参数
func DefaultParams() Params {
	return Params{
		NEstimators:     300,
		MaxDepth:        6,
		LearningRate:    0.05,
		Subsample:       0.8,
		ColsampleByTree: 0.8,
		ScalePosWeight:  1,
		Lambda:          1,
		MinChildWeight:  1,
		Gamma:           0,
		Seed:            42,
	}
}

// Validate 校验参数取值范围
func (p Params) Validate() error {
	switch {
	case p.NEstimators <= 0:
		return invalidParam("n_estimators must be positive, got %d", p.NEstimators)
	case p.MaxDepth <= 0:
		return invalidParam("max_depth must be positive, got %d", p.MaxDepth)
	case p.LearningRate <= 0:
		return invalidParam("learning_rate must be positive, got %v", p.LearningRate)
	case p.Subsample <= 0 || p.Subsample > 1:
		return invalidParam("subsample must be in (0, 1], got %v", p.Subsample)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return invalidParam("colsample_bytree must be in (0, 1], got %v", p.ColsampleByTree)
	case p.ScalePosWeight <= 0:
		return invalidParam("scale_pos_weight must be positive, got %v", p.ScalePosWeight)
	case p.Lambda < 0 || p.MinChildWeight < 0 || p.Gamma < 0:
		return invalidParam("lambda, min_child_weight and gamma must be non-negative")
	}
	return nil
}

func invalidParam(format string, args ...any) error {
	return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}
