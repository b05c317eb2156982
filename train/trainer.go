package train

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/model"
)

// TrainerOptions Trainer 配置
type TrainerOptions struct {
	Logger zerolog.Logger
}

// Trainer 同步训练 GBDT，不重试
type Trainer struct {
	logger zerolog.Logger
}

func NewTrainer(opts TrainerOptions) *Trainer {
	return &Trainer{logger: opts.Logger}
}

// Train 以 weight 作为正类权重训练模型。任何失败都包装为 TRAINING_FAILED。
func (t *Trainer) Train(ctx context.Context, X [][]float64, y []int, weight float64, params model.Params) (*model.GBDT, error) {
	params.ScalePosWeight = weight
	start := time.Now()
	t.logger.Debug().
		Int("rows", len(X)).
		Int("n_estimators", params.NEstimators).
		Int("max_depth", params.MaxDepth).
		Float64("learning_rate", params.LearningRate).
		Float64("scale_pos_weight", weight).
		Msg("training started")

	m, err := model.Fit(ctx, X, y, params)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleTrain, core.ErrorCodeTraining, "fit gbdt", err)
	}

	t.logger.Debug().Dur("took", time.Since(start)).Int("trees", len(m.Trees)).Msg("training completed")
	return m, nil
}
