package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/dataset"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/pipeline"
)

// IngestStage 读取训练/测试 CSV
type IngestStage struct {
	Config dataset.IngestConfig
}

func (s *IngestStage) Name() string        { return "ingest" }
func (s *IngestStage) Kind() pipeline.Kind { return pipeline.KindIngest }

func (s *IngestStage) Process(ctx context.Context, st *pipeline.State) error {
	train, test, err := dataset.NewIngestor(s.Config, st.Logger).Ingest(ctx)
	if err != nil {
		return err
	}
	st.Train, st.Test = train, test
	return nil
}

// ValidateStage 在任何变换前校验 schema
type ValidateStage struct {
	Target string
}

func (s *ValidateStage) Name() string        { return "validate" }
func (s *ValidateStage) Kind() pipeline.Kind { return pipeline.KindValidate }

func (s *ValidateStage) Process(_ context.Context, st *pipeline.State) error {
	if err := requireData(st); err != nil {
		return err
	}
	return dataset.NewValidator(s.Target, st.Logger).Validate(st.Train, st.Test)
}

// TransformStage 派生列、在训练集上拟合编码器并编码两个集合
type TransformStage struct {
	Target string
	Now    func() time.Time
}

func (s *TransformStage) Name() string        { return "transform" }
func (s *TransformStage) Kind() pipeline.Kind { return pipeline.KindTransform }

func (s *TransformStage) Process(_ context.Context, st *pipeline.State) error {
	if err := requireData(st); err != nil {
		return err
	}
	target := s.Target
	if target == "" {
		target = dataset.DefaultTargetColumn
	}
	st.Logger.Info().Msg("data transformation started")

	d := feature.NewDeriver(s.Now)
	train, err := d.Dataset(st.Train)
	if err != nil {
		return fmt.Errorf("derive train: %w", err)
	}
	test, err := d.Dataset(st.Test)
	if err != nil {
		return fmt.Errorf("derive test: %w", err)
	}

	if st.YTrain, err = train.Labels(target); err != nil {
		return err
	}
	if st.YTest, err = test.Labels(target); err != nil {
		return err
	}

	pre, err := feature.Fit(train.Without(target))
	if err != nil {
		return err
	}
	if st.XTrain, err = pre.Transform(train.Without(target)); err != nil {
		return err
	}
	if st.XTest, err = pre.Transform(test.Without(target)); err != nil {
		return err
	}
	st.Preprocessor = pre

	st.Logger.Info().
		Int("features", pre.Dim()).
		Int("train_rows", len(st.XTrain)).
		Int("test_rows", len(st.XTest)).
		Msg("data transformation completed")
	return nil
}

func requireData(st *pipeline.State) error {
	if st.Train == nil || st.Test == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "no dataset ingested")
	}
	return nil
}
