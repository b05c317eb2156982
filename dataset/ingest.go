package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/pkg/dsl"
)

// IngestConfig 训练/测试数据位置
type IngestConfig struct {
	TrainPath string
	TestPath  string
	// Filter 可选的 CEL 过滤表达式，同时作用于训练集与测试集
	Filter string
}

// DefaultIngestConfig 默认读取 artifacts/train.csv 与 artifacts/test.csv
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		TrainPath: filepath.Join("artifacts", "train.csv"),
		TestPath:  filepath.Join("artifacts", "test.csv"),
	}
}

// Ingestor 负责确认数据文件存在并读取
type Ingestor struct {
	cfg    IngestConfig
	logger zerolog.Logger
}

func NewIngestor(cfg IngestConfig, logger zerolog.Logger) *Ingestor {
	return &Ingestor{cfg: cfg, logger: logger}
}

// Ingest 读取训练集与测试集。任一文件不存在返回 NOT_FOUND。
func (i *Ingestor) Ingest(ctx context.Context) (train, test *core.Dataset, err error) {
	i.logger.Info().Msg("data ingestion started")

	for _, p := range []string{i.cfg.TrainPath, i.cfg.TestPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeNotFound,
					fmt.Sprintf("%s not found", p))
			}
			return nil, nil, err
		}
	}
	i.logger.Info().Str("train", i.cfg.TrainPath).Str("test", i.cfg.TestPath).Msg("train & test files found")

	filter, err := dsl.NewFilter(i.cfg.Filter)
	if err != nil {
		return nil, nil, core.WrapDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "invalid filter", err)
	}

	if train, err = i.load(ctx, i.cfg.TrainPath, filter); err != nil {
		return nil, nil, err
	}
	if test, err = i.load(ctx, i.cfg.TestPath, filter); err != nil {
		return nil, nil, err
	}

	i.logger.Info().Int("train_rows", train.Len()).Int("test_rows", test.Len()).Msg("data ingestion completed")
	return train, test, nil
}

func (i *Ingestor) load(ctx context.Context, path string, filter *dsl.Filter) (*core.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	if filter.Expr() == "" {
		return ds, nil
	}
	before := ds.Len()
	if ds, err = filter.Apply(ds); err != nil {
		return nil, core.WrapDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "apply filter", err)
	}
	i.logger.Info().Str("path", path).Str("filter", filter.Expr()).
		Int("before", before).Int("after", ds.Len()).Msg("rows filtered")
	return ds, nil
}
