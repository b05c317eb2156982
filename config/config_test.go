package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/pipeline"
	"github.com/rushteam/fraudkit/scoring"
	"github.com/rushteam/fraudkit/store"
)

func TestLoadApp_Defaults(t *testing.T) {
	for _, k := range []string{"FRAUDKIT_ENV", "LOG_LEVEL", "PORT", "ARTIFACT_BACKEND", "MODEL_BACKEND", "MODEL_NAME", "MODEL_PROTOCOL", "KAFKA_BROKERS", "RATE_LIMIT_RPS"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadApp()
	require.NoError(t, err)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, store.BackendFile, cfg.ArtifactBackend)
	assert.Equal(t, "artifacts/", cfg.ArtifactPrefix)
	assert.Equal(t, scoring.BackendLocal, cfg.ModelBackend)
	assert.Equal(t, DefaultRateLimitRPS, cfg.RateLimitRPS)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.IsProduction())
}

func TestLoadApp_Env(t *testing.T) {
	t.Setenv("FRAUDKIT_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("ARTIFACT_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MODEL_BACKEND", "rpc")
	t.Setenv("MODEL_ENDPOINT", "http://model:8000/predict")
	t.Setenv("MODEL_TIMEOUT", "500ms")
	t.Setenv("RATE_LIMIT_RPS", "25")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := LoadApp()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, store.Options{Backend: "redis", Dir: DefaultArtifactDir, RedisAddr: "localhost:6379", RedisDB: 3}, cfg.StoreOptions())
	assert.Equal(t, scoring.Config{
		Prefix:        "artifacts/",
		ModelBackend:  "rpc",
		ModelEndpoint: "http://model:8000/predict",
		ModelTimeout:  500 * time.Millisecond,
		ModelName:     DefaultModelName,
		ModelProtocol: "v2",
	}, cfg.ScoringConfig())
	assert.Equal(t, 25, cfg.RateLimitRPS)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestApp_Validate(t *testing.T) {
	tests := []struct {
		name    string
		app     App
		wantErr string
	}{
		{name: "file local", app: App{ArtifactBackend: "file", ModelBackend: "local"}},
		{name: "redis without addr", app: App{ArtifactBackend: "redis", ModelBackend: "local"}, wantErr: "REDIS_ADDR"},
		{name: "http without url", app: App{ArtifactBackend: "http", ModelBackend: "local"}, wantErr: "ARTIFACT_URL"},
		{name: "unknown store", app: App{ArtifactBackend: "s3", ModelBackend: "local"}, wantErr: "ARTIFACT_BACKEND"},
		{name: "rpc without endpoint", app: App{ArtifactBackend: "file", ModelBackend: "rpc"}, wantErr: "MODEL_ENDPOINT"},
		{name: "kserve without endpoint", app: App{ArtifactBackend: "file", ModelBackend: "kserve"}, wantErr: "MODEL_ENDPOINT"},
		{name: "unknown model", app: App{ArtifactBackend: "file", ModelBackend: "onnx"}, wantErr: "MODEL_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.app.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

type nopStage struct{}

func (nopStage) Name() string        { return "nop" }
func (nopStage) Kind() pipeline.Kind { return pipeline.KindValidate }

func (nopStage) Process(context.Context, *pipeline.State) error { return nil }

func TestRegistry(t *testing.T) {
	Register("test.nop", func(map[string]any) (pipeline.Stage, error) { return nopStage{}, nil })
	Register("", nil)
	assert.Contains(t, SupportedTypes(), "test.nop")

	cfg := &pipeline.Config{}
	cfg.Pipeline.Name = "t"
	cfg.Pipeline.Stages = []pipeline.StageConfig{{Type: "test.nop"}}
	require.NoError(t, ValidatePipelineConfig(cfg))

	p, err := cfg.BuildPipeline(DefaultFactory())
	require.NoError(t, err)
	require.Len(t, p.Stages, 1)
	assert.Equal(t, "nop", p.Stages[0].Name())

	cfg.Pipeline.Stages = append(cfg.Pipeline.Stages, pipeline.StageConfig{Type: "nope"})
	assert.ErrorContains(t, ValidatePipelineConfig(cfg), `unsupported stage type "nope"`)

	cfg.Pipeline.Stages = nil
	assert.Error(t, ValidatePipelineConfig(cfg))
	assert.NoError(t, ValidatePipelineConfig(nil))
}

func TestDefaultPipelineConfig(t *testing.T) {
	types := func(c *pipeline.Config) []string {
		var out []string
		for _, s := range c.Pipeline.Stages {
			out = append(out, s.Type)
		}
		return out
	}
	assert.Equal(t, []string{"ingest", "validate", "transform", "train.default", "evaluate", "persist"},
		types(DefaultPipelineConfig(false)))
	assert.Equal(t, []string{"ingest", "validate", "transform", "train.search", "evaluate", "persist"},
		types(DefaultPipelineConfig(true)))
}
