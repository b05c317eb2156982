package stages

import (
	"context"

	"github.com/rushteam/fraudkit/artifact"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/eval"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/pipeline"
	"github.com/rushteam/fraudkit/train"
)

// TrainStage 以固定参数训练，正类权重由训练标签计算
type TrainStage struct {
	Params model.Params
}

func (s *TrainStage) Name() string        { return "train.default" }
func (s *TrainStage) Kind() pipeline.Kind { return pipeline.KindTrain }

func (s *TrainStage) Process(ctx context.Context, st *pipeline.State) error {
	if err := requireMatrix(st); err != nil {
		return err
	}
	w, err := train.ImbalanceWeight(st.YTrain)
	if err != nil {
		return err
	}
	st.Logger.Info().Float64("scale_pos_weight", w).Msg("imbalance weight")

	m, err := train.NewTrainer(train.TrainerOptions{Logger: st.Logger}).Train(ctx, st.XTrain, st.YTrain, w, s.Params)
	if err != nil {
		return err
	}
	st.Weight = w
	st.Model = m
	st.ModelKey = artifact.KeyModel
	return nil
}

// SearchStage 超参搜索，产出在全量训练集上重训的最优模型
type SearchStage struct {
	Options train.SearchOptions
	Space   train.Space
}

func (s *SearchStage) Name() string        { return "train.search" }
func (s *SearchStage) Kind() pipeline.Kind { return pipeline.KindTrain }

func (s *SearchStage) Process(ctx context.Context, st *pipeline.State) error {
	if err := requireMatrix(st); err != nil {
		return err
	}
	w, err := train.ImbalanceWeight(st.YTrain)
	if err != nil {
		return err
	}
	opts := s.Options
	opts.Logger = st.Logger
	res, err := train.NewSearch(opts).Run(ctx, st.XTrain, st.YTrain, w, s.Space)
	if err != nil {
		return err
	}
	st.Weight = w
	st.Search = res
	st.Model = res.Model
	st.ModelKey = artifact.KeyModelTuned
	return nil
}

// EvaluateStage 在测试集上校准阈值并生成报告
type EvaluateStage struct{}

func (s *EvaluateStage) Name() string        { return "evaluate" }
func (s *EvaluateStage) Kind() pipeline.Kind { return pipeline.KindEvaluate }

func (s *EvaluateStage) Process(ctx context.Context, st *pipeline.State) error {
	if st.Model == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "no model trained")
	}
	threshold, report, err := eval.Calibrate(ctx, st.Model, st.XTest, st.YTest)
	if err != nil {
		return err
	}
	report.RunID = st.RunID
	st.Threshold = threshold
	st.Report = report

	st.Logger.Info().
		Float64("best_threshold", threshold).
		Float64("pr_auc", report.PRAUC).
		Float64("accuracy", report.Accuracy).
		Float64("fraud_precision", report.Classes[1].Precision).
		Float64("fraud_recall", report.Classes[1].Recall).
		Float64("fraud_f1", report.Classes[1].F1).
		Msg("evaluation completed")
	return nil
}

// PersistStage 把编码器、模型、阈值与报告作为一批写入 State.Store
type PersistStage struct {
	Prefix string
}

func (s *PersistStage) Name() string        { return "persist" }
func (s *PersistStage) Kind() pipeline.Kind { return pipeline.KindPersist }

func (s *PersistStage) Process(ctx context.Context, st *pipeline.State) error {
	if st.Store == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "no artifact store configured")
	}
	if st.Model == nil || st.Report == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "nothing to persist")
	}
	repo := artifact.NewRepository(st.Store, s.Prefix)
	err := repo.Save(ctx, &artifact.Bundle{
		Preprocessor: st.Preprocessor,
		Model:        st.Model,
		ModelKey:     st.ModelKey,
		Threshold:    st.Threshold,
		Report:       st.Report,
	})
	if err != nil {
		return err
	}
	st.Logger.Info().Str("model_key", repo.Key(st.ModelKey)).Msg("artifacts saved")
	return nil
}

func requireMatrix(st *pipeline.State) error {
	if st.XTrain == nil || st.YTrain == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "no encoded training data")
	}
	return nil
}
