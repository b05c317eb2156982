package scoring

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/artifact"
	"github.com/rushteam/fraudkit/audit"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/internal/testutil"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/store"
)

type constClassifier struct{ p float64 }

func (c constClassifier) Name() string { return "const" }

func (c constClassifier) PredictProba(_ context.Context, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = c.p
	}
	return out, nil
}

// seed 训练一个小模型并把制品写入 s，返回用于打分的原始数据集
func seed(t *testing.T, s core.Store, threshold float64) *core.Dataset {
	t.Helper()
	raw := testutil.Transactions(300, 30, 11)
	ds, err := feature.NewDeriver(testutil.Now).Dataset(raw)
	require.NoError(t, err)

	pre, err := feature.Fit(ds.Without("is_fraud"))
	require.NoError(t, err)
	X, err := pre.Transform(ds.Without("is_fraud"))
	require.NoError(t, err)

	p := model.DefaultParams()
	p.NEstimators = 20
	p.MaxDepth = 3
	p.LearningRate = 0.3
	p.ScalePosWeight = 9
	m, err := model.Fit(context.Background(), X, testutil.Labels(raw), p)
	require.NoError(t, err)

	repo := artifact.NewRepository(s, "")
	require.NoError(t, repo.Save(context.Background(), &artifact.Bundle{
		Preprocessor: pre,
		Model:        m,
		Threshold:    threshold,
	}))
	return raw
}

func TestService_Uninitialized(t *testing.T) {
	svc := New(store.NewMemoryStore(), Config{})
	assert.False(t, svc.Ready())

	_, err := svc.Score(context.Background(), core.Record{"amt": 1.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUninitialized)
	assert.Equal(t, 1.0, promtest.ToFloat64(svc.Metrics().Errors.WithLabelValues(core.ErrorCodeUninitialized)))

	_, err = svc.Threshold()
	assert.True(t, core.IsUninitialized(err))
}

func TestService_LoadErrors(t *testing.T) {
	ctx := context.Background()

	svc := New(store.NewMemoryStore(), Config{})
	err := svc.Load(ctx)
	assert.ErrorIs(t, err, core.ErrArtifactLoad)
	assert.False(t, svc.Ready())

	s := store.NewMemoryStore()
	seed(t, s, 0.5)
	require.NoError(t, s.Set(ctx, "artifacts/model.json", []byte("{broken")))
	err = New(s, Config{}).Load(ctx)
	assert.ErrorIs(t, err, core.ErrArtifactLoad)

	s = store.NewMemoryStore()
	seed(t, s, 0.5)
	err = New(s, Config{ModelBackend: BackendRPC}).Load(ctx)
	assert.ErrorIs(t, err, core.ErrArtifactLoad)

	err = New(s, Config{ModelBackend: "onnx"}).Load(ctx)
	assert.True(t, core.IsNotSupported(err))
}

func TestService_Score(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	raw := seed(t, s, 0.5)

	reg := prometheus.NewRegistry()
	rec := audit.NewMemoryRecorder()
	svc := New(s, Config{}, WithRegisterer(reg), WithRecorder(rec), WithClock(testutil.Now))
	require.NoError(t, svc.Load(ctx))
	require.NoError(t, svc.Load(ctx))
	assert.True(t, svc.Ready())

	reqs := make([]core.Record, 40)
	for i := range reqs {
		reqs[i] = testutil.ScoringRequest(raw.Rows[i])
	}
	batch, err := svc.ScoreBatch(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, batch, 40)

	frauds := 0
	for i, res := range batch {
		assert.GreaterOrEqual(t, res.Probability, 0.0)
		assert.LessOrEqual(t, res.Probability, 1.0)
		assert.Equal(t, res.Probability >= 0.5, res.Prediction == 1)
		frauds += res.Prediction

		single, err := svc.Score(ctx, reqs[i])
		require.NoError(t, err)
		assert.Equal(t, res, single)
	}

	assert.Equal(t, float64(2*frauds), promtest.ToFloat64(svc.Metrics().Scored.WithLabelValues("fraud")))
	assert.Equal(t, 1.0, promtest.ToFloat64(svc.Metrics().Loaded))
	assert.Len(t, rec.Decisions(), 80)

	// 请求缺少字段
	_, err = svc.Score(ctx, core.Record{"amt": 10.0})
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestService_DecisionAtThreshold(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	raw := seed(t, s, 0.7)
	req := testutil.ScoringRequest(raw.Rows[0])

	tests := []struct {
		p    float64
		want int
	}{
		{p: 0.0, want: 0},
		{p: 0.6999999, want: 0},
		{p: 0.7, want: 1},
		{p: 0.95, want: 1},
	}
	for _, tt := range tests {
		svc := New(s, Config{}, WithClassifier(constClassifier{p: tt.p}), WithClock(testutil.Now))
		require.NoError(t, svc.Load(ctx))
		res, err := svc.Score(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Prediction, "p=%v", tt.p)
		assert.Equal(t, 0.7, res.Threshold)
	}
}

func TestService_RejectsInvalidProbability(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	raw := seed(t, s, 0.5)
	req := testutil.ScoringRequest(raw.Rows[0])

	for _, p := range []float64{1.7, -0.1, math.NaN(), math.Inf(1)} {
		reg := prometheus.NewRegistry()
		svc := New(s, Config{}, WithClassifier(constClassifier{p: p}), WithRegisterer(reg), WithClock(testutil.Now))
		require.NoError(t, svc.Load(ctx))

		res, err := svc.Score(ctx, req)
		assert.Nil(t, res, "p=%v", p)
		assert.True(t, core.IsUnavailable(err), "p=%v err=%v", p, err)
		assert.Equal(t, 1.0, promtest.ToFloat64(svc.Metrics().Errors.WithLabelValues(core.ErrorCodeUnavailable)), "p=%v", p)
	}
}

func TestService_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	raw := seed(t, s, 0.5)
	svc := New(s, Config{}, WithClock(testutil.Now))

	req := testutil.ScoringRequest(raw.Rows[3])
	var wg sync.WaitGroup
	results := make([]*Result, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Load(ctx); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = svc.Score(ctx, req)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}
