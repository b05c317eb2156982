package builders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/config"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/pipeline"
	"github.com/rushteam/fraudkit/stages"
)

func TestDefaultPipelineBuilds(t *testing.T) {
	for _, search := range []bool{false, true} {
		cfg := config.DefaultPipelineConfig(search)
		require.NoError(t, config.ValidatePipelineConfig(cfg))
		p, err := cfg.BuildPipeline(config.DefaultFactory())
		require.NoError(t, err)
		require.Len(t, p.Stages, 6)
		assert.Equal(t, pipeline.KindTrain, p.Stages[3].Kind())
	}
}

const searchYAML = `
pipeline:
  name: tuned
  stages:
    - type: ingest
      config:
        train_path: data/train.csv
        test_path: data/test.csv
        filter: "amt > 0"
    - type: transform
      config:
        now: "2020-06-21T12:00:00Z"
    - type: train.search
      config:
        budget: 5
        folds: 4
        workers: 2
        base:
          lambda: 2
        space:
          max_depth: [2, 3]
          learning_rate: [0.1]
`

func TestBuildFromYAML(t *testing.T) {
	cfg, err := pipeline.ParseYAML([]byte(searchYAML))
	require.NoError(t, err)
	p, err := cfg.BuildPipeline(config.DefaultFactory())
	require.NoError(t, err)
	require.Len(t, p.Stages, 3)

	ingest := p.Stages[0].(*stages.IngestStage)
	assert.Equal(t, "data/train.csv", ingest.Config.TrainPath)
	assert.Equal(t, "amt > 0", ingest.Config.Filter)

	transform := p.Stages[1].(*stages.TransformStage)
	require.NotNil(t, transform.Now)
	assert.Equal(t, time.Date(2020, 6, 21, 12, 0, 0, 0, time.UTC), transform.Now().UTC())
	assert.Equal(t, "is_fraud", transform.Target)

	search := p.Stages[2].(*stages.SearchStage)
	assert.Equal(t, 5, search.Options.Budget)
	assert.Equal(t, 4, search.Options.Folds)
	assert.Equal(t, 2, search.Options.Workers)
	assert.Equal(t, 2.0, search.Options.Base.Lambda)
	assert.Equal(t, 300, search.Options.Base.NEstimators)
	assert.Equal(t, []int{2, 3}, search.Space.MaxDepth)
	assert.Equal(t, []float64{0.1}, search.Space.LearningRate)
	assert.Equal(t, []int{200, 300, 400}, search.Space.NEstimators)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build config.StageBuilder
		cfg   map[string]any
	}{
		{name: "bad params", build: BuildTrainStage, cfg: map[string]any{"params": map[string]any{"max_depth": 0}}},
		{name: "bad space", build: BuildSearchStage, cfg: map[string]any{"space": map[string]any{"subsample": []any{1.5}}}},
		{name: "bad now", build: BuildTransformStage, cfg: map[string]any{"now": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(tt.cfg)
			assert.Error(t, err)
		})
	}

	_, err := BuildTrainStage(map[string]any{"params": map[string]any{"learning_rate": -1}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestBuildTrainStage_Params(t *testing.T) {
	s, err := BuildTrainStage(map[string]any{"params": map[string]any{
		"n_estimators": 50, "max_depth": 4, "learning_rate": 0.1, "seed": 7,
	}})
	require.NoError(t, err)
	p := s.(*stages.TrainStage).Params
	assert.Equal(t, 50, p.NEstimators)
	assert.Equal(t, 4, p.MaxDepth)
	assert.Equal(t, 0.1, p.LearningRate)
	assert.Equal(t, int64(7), p.Seed)
	assert.Equal(t, 0.8, p.Subsample)
}
