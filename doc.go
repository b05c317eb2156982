// Package fraudkit 是一个信用卡欺诈检测工具包。
//
// 设计要点：
// - Pipeline-first: 训练流程通过 Stage 串联（Ingest → Validate → Transform → Train → Evaluate → Persist）
// - 制品成套写入：编码器、模型、阈值与评估报告一次 BatchSet，阈值记录对应的模型 key
// - 打分无锁：制品加载一次后并发打分，probability >= threshold 判为欺诈
package fraudkit

import "github.com/rushteam/fraudkit/pipeline"

// 轻量 facade：便于用户直接 import "fraudkit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Stage = pipeline.Stage
type State = pipeline.State
type Kind = pipeline.Kind

const (
	KindIngest    = pipeline.KindIngest
	KindValidate  = pipeline.KindValidate
	KindTransform = pipeline.KindTransform
	KindTrain     = pipeline.KindTrain
	KindEvaluate  = pipeline.KindEvaluate
	KindPersist   = pipeline.KindPersist
)
