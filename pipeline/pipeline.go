package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline 把训练流程拆成可组合的 Stage 链，按顺序同步执行。
type Pipeline struct {
	Name   string
	Stages []Stage
	Logger zerolog.Logger
}

// Run 依次执行各阶段，任一阶段失败立即返回，不做重试。
// st 为 nil 时创建新 State；RunID 为空时生成新的 UUID。
func (p *Pipeline) Run(ctx context.Context, st *State) (*State, error) {
	if st == nil {
		st = &State{}
	}
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	st.Logger = p.Logger.With().Str("pipeline", p.Name).Str("run_id", st.RunID).Logger()

	start := time.Now()
	st.Logger.Info().Int("stages", len(p.Stages)).Msg("pipeline started")
	for _, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		t := time.Now()
		st.Logger.Info().Str("stage", stage.Name()).Str("kind", string(stage.Kind())).Msg("stage started")
		if err := stage.Process(ctx, st); err != nil {
			st.Logger.Error().Err(err).Str("stage", stage.Name()).Msg("stage failed")
			return st, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		st.Logger.Info().Str("stage", stage.Name()).Dur("took", time.Since(t)).Msg("stage completed")
	}
	st.Logger.Info().Dur("took", time.Since(start)).Msg("pipeline completed")
	return st, nil
}
