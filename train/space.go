package train

import (
	"math/rand"

	"github.com/rushteam/fraudkit/model"
)

// Space 超参搜索空间，每个参数是一个离散取值列表
type Space struct {
	ColsampleByTree []float64 `json:"colsample_bytree" yaml:"colsample_bytree"`
	LearningRate    []float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth        []int     `json:"max_depth" yaml:"max_depth"`
	NEstimators     []int     `json:"n_estimators" yaml:"n_estimators"`
	Subsample       []float64 `json:"subsample" yaml:"subsample"`
}

// DefaultSpace 默认搜索空间，共 243 个组合
func DefaultSpace() Space {
	return Space{
		ColsampleByTree: []float64{0.7, 0.8, 0.9},
		LearningRate:    []float64{0.01, 0.05, 0.1},
		MaxDepth:        []int{4, 6, 8},
		NEstimators:     []int{200, 300, 400},
		Subsample:       []float64{0.7, 0.8, 0.9},
	}
}

// Size 组合总数
func (s Space) Size() int {
	return len(s.ColsampleByTree) * len(s.LearningRate) * len(s.MaxDepth) * len(s.NEstimators) * len(s.Subsample)
}

// Grid 枚举全部组合。参数名按字典序排列
// (colsample_bytree, learning_rate, max_depth, n_estimators, subsample)，最后一个变化最快。
// 未搜索的参数取自 base。
func (s Space) Grid(base model.Params) []model.Params {
	grid := make([]model.Params, 0, s.Size())
	for _, cs := range s.ColsampleByTree {
		for _, lr := range s.LearningRate {
			for _, md := range s.MaxDepth {
				for _, ne := range s.NEstimators {
					for _, ss := range s.Subsample {
						p := base
						p.ColsampleByTree = cs
						p.LearningRate = lr
						p.MaxDepth = md
						p.NEstimators = ne
						p.Subsample = ss
						grid = append(grid, p)
					}
				}
			}
		}
	}
	return grid
}

// Draw 从网格中不放回抽取 budget 个组合，顺序由 seed 决定；
// budget 不小于网格大小时按枚举顺序返回整个网格。
func (s Space) Draw(base model.Params, budget int, seed int64) []model.Params {
	grid := s.Grid(base)
	if budget >= len(grid) {
		return grid
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(grid))
	out := make([]model.Params, budget)
	for i := 0; i < budget; i++ {
		out[i] = grid[perm[i]]
	}
	return out
}
