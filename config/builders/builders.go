// Package builders 在 init 中把内置 Stage 注册到 config 注册表。
// 入口处 import _ "github.com/rushteam/fraudkit/config/builders" 即可通过 YAML/JSON 构建流水线。
package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/fraudkit/config"
	"github.com/rushteam/fraudkit/dataset"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/pipeline"
	"github.com/rushteam/fraudkit/pkg/conv"
	"github.com/rushteam/fraudkit/stages"
	"github.com/rushteam/fraudkit/train"
)

func init() {
	config.Register("ingest", BuildIngestStage)
	config.Register("validate", BuildValidateStage)
	config.Register("transform", BuildTransformStage)
	config.Register("train.default", BuildTrainStage)
	config.Register("train.search", BuildSearchStage)
	config.Register("evaluate", BuildEvaluateStage)
	config.Register("persist", BuildPersistStage)
}

func BuildIngestStage(cfg map[string]any) (pipeline.Stage, error) {
	def := dataset.DefaultIngestConfig()
	return &stages.IngestStage{Config: dataset.IngestConfig{
		TrainPath: conv.ConfigGet(cfg, "train_path", def.TrainPath),
		TestPath:  conv.ConfigGet(cfg, "test_path", def.TestPath),
		Filter:    conv.ConfigGet(cfg, "filter", ""),
	}}, nil
}

func BuildValidateStage(cfg map[string]any) (pipeline.Stage, error) {
	return &stages.ValidateStage{Target: conv.ConfigGet(cfg, "target", dataset.DefaultTargetColumn)}, nil
}

// BuildTransformStage 可选 now（RFC3339）固定计算年龄的参考时间
func BuildTransformStage(cfg map[string]any) (pipeline.Stage, error) {
	s := &stages.TransformStage{Target: conv.ConfigGet(cfg, "target", dataset.DefaultTargetColumn)}
	if raw := conv.ConfigGet(cfg, "now", ""); raw != "" {
		now, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid now %q: %w", raw, err)
		}
		s.Now = func() time.Time { return now }
	}
	return s, nil
}

func BuildTrainStage(cfg map[string]any) (pipeline.Stage, error) {
	p, err := paramsFromConfig(cfg, "params")
	if err != nil {
		return nil, err
	}
	return &stages.TrainStage{Params: p}, nil
}

func BuildSearchStage(cfg map[string]any) (pipeline.Stage, error) {
	base, err := paramsFromConfig(cfg, "base")
	if err != nil {
		return nil, err
	}
	space := train.DefaultSpace()
	if m, ok := cfg["space"].(map[string]any); ok {
		if v := conv.SliceAnyToFloat64(m["colsample_bytree"]); len(v) > 0 {
			space.ColsampleByTree = v
		}
		if v := conv.SliceAnyToFloat64(m["learning_rate"]); len(v) > 0 {
			space.LearningRate = v
		}
		if v := conv.SliceAnyToInt(m["max_depth"]); len(v) > 0 {
			space.MaxDepth = v
		}
		if v := conv.SliceAnyToInt(m["n_estimators"]); len(v) > 0 {
			space.NEstimators = v
		}
		if v := conv.SliceAnyToFloat64(m["subsample"]); len(v) > 0 {
			space.Subsample = v
		}
	}
	for _, p := range space.Grid(base) {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("search space: %w", err)
		}
	}
	return &stages.SearchStage{
		Options: train.SearchOptions{
			Budget:  int(conv.ConfigGetInt64(cfg, "budget", 15)),
			Folds:   int(conv.ConfigGetInt64(cfg, "folds", 3)),
			Seed:    conv.ConfigGetInt64(cfg, "seed", 42),
			Workers: int(conv.ConfigGetInt64(cfg, "workers", 0)),
			Base:    &base,
		},
		Space: space,
	}, nil
}

func BuildEvaluateStage(map[string]any) (pipeline.Stage, error) {
	return &stages.EvaluateStage{}, nil
}

func BuildPersistStage(cfg map[string]any) (pipeline.Stage, error) {
	return &stages.PersistStage{Prefix: conv.ConfigGet(cfg, "prefix", "")}, nil
}

// paramsFromConfig 以 DefaultParams 为底，覆盖 cfg[key] 中出现的字段
func paramsFromConfig(cfg map[string]any, key string) (model.Params, error) {
	p := model.DefaultParams()
	m, ok := cfg[key].(map[string]any)
	if !ok {
		return p, nil
	}
	p.NEstimators = int(conv.ConfigGetInt64(m, "n_estimators", int64(p.NEstimators)))
	p.MaxDepth = int(conv.ConfigGetInt64(m, "max_depth", int64(p.MaxDepth)))
	p.LearningRate = conv.ConfigGetFloat64(m, "learning_rate", p.LearningRate)
	p.Subsample = conv.ConfigGetFloat64(m, "subsample", p.Subsample)
	p.ColsampleByTree = conv.ConfigGetFloat64(m, "colsample_bytree", p.ColsampleByTree)
	p.Lambda = conv.ConfigGetFloat64(m, "lambda", p.Lambda)
	p.MinChildWeight = conv.ConfigGetFloat64(m, "min_child_weight", p.MinChildWeight)
	p.Gamma = conv.ConfigGetFloat64(m, "gamma", p.Gamma)
	p.Seed = conv.ConfigGetInt64(m, "seed", p.Seed)
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
