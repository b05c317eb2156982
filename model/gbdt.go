package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/fraudkit/core"
)

// Node 扁平数组中的树节点。叶子节点 Left == Right == -1。
// 样本满足 x[Feature] < Threshold 时走左子树。
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// IsLeaf 是否叶子节点
func (n Node) IsLeaf() bool { return n.Left < 0 }

// Tree 一棵回归树，根节点下标为 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// GBDT 梯度提升决策树二分类模型（logistic 损失）。
//
// 预测：P = sigmoid(BaseMargin + sum(tree_k(x)))
//
// 训练后不可变，可并发预测。
type GBDT struct {
	Params     Params  `json:"params"`
	NFeatures  int     `json:"n_features"`
	BaseMargin float64 `json:"base_margin"`
	Trees      []Tree  `json:"trees"`
}

func (m *GBDT) Name() string { return "gbdt" }

// PredictProba 批量预测正类概率
func (m *GBDT) PredictProba(ctx context.Context, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != m.NFeatures {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeSchemaMismatch,
				fmt.Sprintf("row %d has %d features, model expects %d", i, len(x), m.NFeatures))
		}
		out[i] = sigmoid(m.margin(x))
	}
	return out, nil
}

func (m *GBDT) margin(x []float64) float64 {
	s := m.BaseMargin
	for k := range m.Trees {
		s += m.Trees[k].predict(x)
	}
	return s
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Fit 训练 GBDT：
//   - 梯度 g = w(p - y)，hessian h = w·p(1-p)，正类 w = ScalePosWeight，负类 w = 1
//   - 精确贪心分裂，阈值取相邻不同取值的中点
//   - 叶子值 -G/(H+λ)·eta
//   - 每棵树按 Subsample 做伯努利行采样，按 ColsampleByTree 做列采样
//
// 随机性全部来自 Params.Seed，相同输入得到相同模型。每轮之间检查 ctx。
func Fit(ctx context.Context, X [][]float64, y []int, p Params) (*GBDT, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInsufficientData, "no training rows")
	}
	if len(X) != len(y) {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("X has %d rows but y has %d", len(X), len(y)))
	}
	nfeat := len(X[0])
	for i, x := range X {
		if len(x) != nfeat {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("row %d has %d features, expected %d", i, len(x), nfeat))
		}
	}

	n := len(X)
	rng := rand.New(rand.NewSource(p.Seed))
	model := &GBDT{Params: p, NFeatures: nfeat, Trees: make([]Tree, 0, p.NEstimators)}

	margin := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	b := &treeBuilder{X: X, grad: grad, hess: hess, params: p}

	for round := 0; round < p.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range X {
			w := 1.0
			if y[i] == 1 {
				w = p.ScalePosWeight
			}
			prob := sigmoid(margin[i])
			grad[i] = w * (prob - float64(y[i]))
			hess[i] = w * prob * (1 - prob)
		}

		rows := sampleRows(rng, n, p.Subsample)
		b.cols = sampleCols(rng, nfeat, p.ColsampleByTree)
		tree := b.build(rows)

		for i, x := range X {
			margin[i] += tree.predict(x)
		}
		model.Trees = append(model.Trees, tree)
	}
	return model, nil
}

func sampleRows(rng *rand.Rand, n int, ratio float64) []int {
	if ratio >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, 0, int(float64(n)*ratio)+1)
	for i := 0; i < n; i++ {
		if rng.Float64() < ratio {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, rng.Intn(n))
	}
	return rows
}

func sampleCols(rng *rand.Rand, nfeat int, ratio float64) []int {
	k := int(math.Floor(ratio * float64(nfeat)))
	if k < 1 {
		k = 1
	}
	if k >= nfeat {
		cols := make([]int, nfeat)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	cols := rng.Perm(nfeat)[:k]
	sort.Ints(cols)
	return cols
}

type treeBuilder struct {
	X      [][]float64
	grad   []float64
	hess   []float64
	cols   []int
	params Params

	nodes []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	found     bool
}

func (b *treeBuilder) build(rows []int) Tree {
	b.nodes = make([]Node, 0, 16)
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

// grow 递归生长，返回节点下标
func (b *treeBuilder) grow(rows []int, depth int) int {
	var G, H float64
	for _, i := range rows {
		G += b.grad[i]
		H += b.hess[i]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Left: -1, Right: -1,
		Value: -G / (H + b.params.Lambda) * b.params.LearningRate})

	if depth >= b.params.MaxDepth || len(rows) < 2 || H < 2*b.params.MinChildWeight {
		return idx
	}
	best := b.findSplit(rows, G, H)
	if !best.found {
		return idx
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if b.X[i][best.feature] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) findSplit(rows []int, G, H float64) split {
	lambda := b.params.Lambda
	mcw := b.params.MinChildWeight
	parent := G * G / (H + lambda)

	best := split{}
	sorted := make([]int, len(rows))
	for _, f := range b.cols {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var GL, HL float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			GL += b.grad[i]
			HL += b.hess[i]

			lo := b.X[i][f]
			hi := b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < mcw || HR < mcw {
				continue
			}
			gain := 0.5*(GL*GL/(HL+lambda)+GR*GR/(HR+lambda)-parent) - b.params.Gamma
			if gain <= 0 || (best.found && gain <= best.gain) {
				continue
			}
			thr := lo + (hi-lo)/2
			if thr <= lo {
				thr = hi
			}
			best = split{feature: f, threshold: thr, gain: gain, found: true}
		}
	}
	return best
}
