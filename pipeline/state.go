package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/eval"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/train"
)

// State 一次流水线运行在各阶段之间传递的数据
type State struct {
	RunID  string
	Logger zerolog.Logger

	// Store 制品写入位置
	Store core.Store

	// ingest
	Train *core.Dataset
	Test  *core.Dataset

	// transform
	Preprocessor *feature.State
	XTrain       [][]float64
	YTrain       []int
	XTest        [][]float64
	YTest        []int

	// train
	Weight   float64
	Model    *model.GBDT
	ModelKey string
	Search   *train.SearchResult

	// evaluate
	Threshold float64
	Report    *eval.Report
}
