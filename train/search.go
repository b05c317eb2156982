package train

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/eval"
	"github.com/rushteam/fraudkit/model"
)

// SearchOptions 超参搜索配置
type SearchOptions struct {
	// Budget 抽取的组合数，默认 15
	Budget int
	// Folds 交叉验证折数，默认 3
	Folds int
	// Seed 抽样种子，默认 42
	Seed int64
	// Workers 并发评估的候选数，默认 GOMAXPROCS
	Workers int
	// Base 搜索空间之外的参数，默认 model.DefaultParams()
	Base *model.Params

	Logger zerolog.Logger
}

// Candidate 一个被评估的组合
type Candidate struct {
	Params     model.Params `json:"params"`
	FoldScores []float64    `json:"fold_scores"`
	CVScore    float64      `json:"cv_score"`
}

// SearchResult 搜索结果，Model 为最优组合在全量数据上重新训练的模型
type SearchResult struct {
	Model      *model.GBDT
	Params     model.Params
	CVScore    float64
	Candidates []Candidate
}

// Search 随机超参搜索 + 分层交叉验证，以平均精确率（PR-AUC）评分
type Search struct {
	opts    SearchOptions
	trainer *Trainer
}

func NewSearch(opts SearchOptions) *Search {
	if opts.Budget <= 0 {
		opts.Budget = 15
	}
	if opts.Folds <= 0 {
		opts.Folds = 3
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Base == nil {
		p := model.DefaultParams()
		opts.Base = &p
	}
	return &Search{opts: opts, trainer: NewTrainer(TrainerOptions{Logger: opts.Logger})}
}

// Run 评估 budget 个组合，选择 CV 均分最高者（并列取最先抽到的），并在全量数据上重新训练。
// 每个候选写入自己的结果槽位，结果与 goroutine 完成顺序无关。
func (s *Search) Run(ctx context.Context, X [][]float64, y []int, weight float64, space Space) (*SearchResult, error) {
	if space.Size() == 0 {
		return nil, core.NewDomainError(core.ModuleSearch, core.ErrorCodeInvalidInput, "empty search space")
	}
	if len(X) != len(y) {
		return nil, core.NewDomainError(core.ModuleSearch, core.ErrorCodeInvalidInput,
			fmt.Sprintf("X has %d rows but y has %d", len(X), len(y)))
	}
	folds, err := StratifiedKFold(y, s.opts.Folds)
	if err != nil {
		return nil, err
	}

	draws := space.Draw(*s.opts.Base, s.opts.Budget, s.opts.Seed)
	s.opts.Logger.Info().
		Int("candidates", len(draws)).
		Int("grid", space.Size()).
		Int("folds", s.opts.Folds).
		Int("workers", s.opts.Workers).
		Msg("hyperparameter search started")

	start := time.Now()
	results := make([]Candidate, len(draws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, p := range draws {
		p.ScalePosWeight = weight
		g.Go(func() error {
			scores, err := s.crossValidate(gctx, X, y, weight, p, folds)
			if err != nil {
				return err
			}
			results[i] = Candidate{Params: p, FoldScores: scores, CVScore: stat.Mean(scores, nil)}
			s.opts.Logger.Debug().Int("draw", i).Float64("cv_score", results[i].CVScore).Msg("candidate evaluated")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].CVScore > results[best].CVScore {
			best = i
		}
	}
	winner := results[best]
	s.opts.Logger.Info().
		Int("draw", best).
		Float64("cv_score", winner.CVScore).
		Dur("took", time.Since(start)).
		Msg("best candidate selected")

	m, err := s.trainer.Train(ctx, X, y, weight, winner.Params)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Model:      m,
		Params:     m.Params,
		CVScore:    winner.CVScore,
		Candidates: results,
	}, nil
}

func (s *Search) crossValidate(ctx context.Context, X [][]float64, y []int, weight float64, p model.Params, folds []Fold) ([]float64, error) {
	scores := make([]float64, len(folds))
	for f, fold := range folds {
		Xtr, ytr := subset(X, y, fold.Train)
		Xte, yte := subset(X, y, fold.Test)

		m, err := s.trainer.Train(ctx, Xtr, ytr, weight, p)
		if err != nil {
			return nil, err
		}
		probs, err := m.PredictProba(ctx, Xte)
		if err != nil {
			return nil, err
		}
		ap, err := eval.AveragePrecision(yte, probs)
		if err != nil {
			if !core.IsDegenerateLabels(err) {
				return nil, err
			}
			// 该折没有正样本，记 0 分
			s.opts.Logger.Warn().Int("fold", f).Msg("fold has no positive labels")
			ap = 0
		}
		scores[f] = ap
	}
	return scores, nil
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
