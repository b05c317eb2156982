package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/artifact"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/dataset"
	"github.com/rushteam/fraudkit/internal/testutil"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/pipeline"
	"github.com/rushteam/fraudkit/scoring"
	"github.com/rushteam/fraudkit/store"
	"github.com/rushteam/fraudkit/train"
)

func writeCSV(t *testing.T, path string, ds *core.Dataset) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, dataset.WriteCSV(f, ds))
}

func smallParams() model.Params {
	p := model.DefaultParams()
	p.NEstimators = 30
	p.MaxDepth = 3
	p.LearningRate = 0.2
	return p
}

func trainingPipeline(dir string, trainStage pipeline.Stage) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "test",
		Stages: []pipeline.Stage{
			&IngestStage{Config: dataset.IngestConfig{
				TrainPath: filepath.Join(dir, "train.csv"),
				TestPath:  filepath.Join(dir, "test.csv"),
			}},
			&ValidateStage{},
			&TransformStage{Now: testutil.Now},
			trainStage,
			&EvaluateStage{},
			&PersistStage{},
		},
	}
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testRaw := testutil.Transactions(200, 10, 2)
	writeCSV(t, filepath.Join(dir, "train.csv"), testutil.Transactions(1000, 50, 1))
	writeCSV(t, filepath.Join(dir, "test.csv"), testRaw)

	s := store.NewMemoryStore()
	st, err := trainingPipeline(dir, &TrainStage{Params: smallParams()}).
		Run(ctx, &pipeline.State{Store: s})
	require.NoError(t, err)

	assert.InDelta(t, 950.0/50.0, st.Weight, 1e-12)
	assert.Equal(t, artifact.KeyModel, st.ModelKey)
	assert.Equal(t, st.RunID, st.Report.RunID)
	assert.GreaterOrEqual(t, st.Threshold, 0.0)
	assert.LessOrEqual(t, st.Threshold, 1.0)
	assert.Greater(t, st.Report.PRAUC, 0.5)
	assert.Equal(t, 200, st.Report.Total())

	thr, err := artifact.NewRepository(s, "").LoadThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Threshold, thr.Threshold)
	assert.Equal(t, st.RunID, thr.RunID)

	svc := scoring.New(s, scoring.Config{}, scoring.WithClock(testutil.Now))
	require.NoError(t, svc.Load(ctx))

	flagged := 0
	for _, r := range testRaw.Rows {
		res, err := svc.Score(ctx, testutil.ScoringRequest(r))
		require.NoError(t, err)
		if res.Probability >= st.Threshold {
			flagged++
			assert.Equal(t, 1, res.Prediction)
		}
	}
	assert.Equal(t, st.Report.PredictedPositives(), flagged)
}

func TestEndToEnd_Search(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "train.csv"), testutil.Transactions(400, 40, 3))
	writeCSV(t, filepath.Join(dir, "test.csv"), testutil.Transactions(100, 10, 4))

	base := smallParams()
	space := train.Space{
		ColsampleByTree: []float64{0.8},
		LearningRate:    []float64{0.1, 0.3},
		MaxDepth:        []int{2, 3},
		NEstimators:     []int{10},
		Subsample:       []float64{0.8},
	}
	search := &SearchStage{Options: train.SearchOptions{Budget: 3, Folds: 3, Base: &base}, Space: space}

	s := store.NewMemoryStore()
	st, err := trainingPipeline(dir, search).Run(ctx, &pipeline.State{Store: s})
	require.NoError(t, err)
	require.NotNil(t, st.Search)
	assert.Len(t, st.Search.Candidates, 3)
	assert.Equal(t, artifact.KeyModelTuned, st.ModelKey)

	svc := scoring.New(s, scoring.Config{}, scoring.WithClock(testutil.Now))
	require.NoError(t, svc.Load(ctx))
	_, err = artifact.NewRepository(s, "").LoadModel(ctx, artifact.KeyModelTuned)
	assert.NoError(t, err)
}

func TestSchemaMismatchFailsBeforeTraining(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "train.csv"), testutil.Transactions(100, 10, 1))
	writeCSV(t, filepath.Join(dir, "test.csv"), testutil.Transactions(50, 5, 2).Without("merchant"))

	var trace []string
	p := trainingPipeline(dir, &TrainStage{Params: smallParams()})
	p.Stages = append(p.Stages[:3], &spyStage{trace: &trace})

	s := store.NewMemoryStore()
	st, err := p.Run(context.Background(), &pipeline.State{Store: s})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "stage validate")
	assert.Nil(t, st.XTrain)
	assert.Empty(t, trace)

	_, err = s.Get(context.Background(), "artifacts/"+artifact.KeyThreshold)
	assert.ErrorIs(t, err, core.ErrStoreNotFound)
}

func TestStagePreconditions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		stage pipeline.Stage
	}{
		{name: "validate", stage: &ValidateStage{}},
		{name: "transform", stage: &TransformStage{}},
		{name: "train", stage: &TrainStage{Params: smallParams()}},
		{name: "search", stage: &SearchStage{}},
		{name: "evaluate", stage: &EvaluateStage{}},
		{name: "persist", stage: &PersistStage{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stage.Process(ctx, &pipeline.State{})
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestIngestStage_Missing(t *testing.T) {
	st := &pipeline.State{}
	err := (&IngestStage{Config: dataset.IngestConfig{
		TrainPath: filepath.Join(t.TempDir(), "nope.csv"),
		TestPath:  filepath.Join(t.TempDir(), "nope.csv"),
	}}).Process(context.Background(), st)
	assert.True(t, core.IsNotFound(err))
}

type spyStage struct{ trace *[]string }

func (s *spyStage) Name() string        { return "spy" }
func (s *spyStage) Kind() pipeline.Kind { return pipeline.KindTrain }

func (s *spyStage) Process(context.Context, *pipeline.State) error {
	*s.trace = append(*s.trace, "spy")
	return nil
}
