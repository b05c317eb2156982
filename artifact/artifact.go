// Package artifact 把训练产物（编码器、模型、阈值、评估报告）整批写入 core.Store，
// 并为打分服务读取它们。
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/eval"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/model"
)

// 制品文件名，实际 key 为 prefix + 文件名
const (
	KeyPreprocessor = "preprocessor.json"
	KeyModel        = "model.json"
	KeyModelTuned   = "model_tuned.json"
	KeyThreshold    = "threshold.json"
	KeyReport       = "evaluation_report.csv"

	DefaultPrefix = "artifacts/"
)

// Threshold 阈值制品，记录它是针对哪个模型校准的
type Threshold struct {
	Threshold float64 `json:"threshold"`
	ModelKey  string  `json:"model_key"`
	RunID     string  `json:"run_id,omitempty"`
}

// Bundle 一次训练运行的全部产物
type Bundle struct {
	Preprocessor *feature.State
	Model        *model.GBDT
	// ModelKey 模型写入的文件名，KeyModel 或 KeyModelTuned
	ModelKey  string
	Threshold float64
	Report    *eval.Report
}

// Repository 在 core.Store 上按固定 key 读写制品
type Repository struct {
	store  core.Store
	prefix string
}

func NewRepository(s core.Store, prefix string) *Repository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Repository{store: s, prefix: prefix}
}

// Key 返回文件名对应的完整 key
func (r *Repository) Key(name string) string {
	return r.prefix + name
}

// Save 先用一次 BatchSet 写入编码器、模型与报告，成功后再单独写 threshold.json。
// 阈值是提交标记：它指向的模型 key 在它可见之前已经落盘，前一步失败时旧阈值保持不变。
func (r *Repository) Save(ctx context.Context, b *Bundle) error {
	if b.Preprocessor == nil || b.Model == nil {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "bundle requires preprocessor and model")
	}
	modelKey := b.ModelKey
	if modelKey == "" {
		modelKey = KeyModel
	}

	pre, err := feature.MarshalState(b.Preprocessor)
	if err != nil {
		return fmt.Errorf("encode preprocessor: %w", err)
	}
	m, err := model.MarshalGBDT(b.Model)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	th := Threshold{Threshold: b.Threshold, ModelKey: modelKey}
	if b.Report != nil {
		th.RunID = b.Report.RunID
	}
	thr, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("encode threshold: %w", err)
	}

	kvs := map[string][]byte{
		r.Key(KeyPreprocessor): pre,
		r.Key(modelKey):        m,
	}
	if b.Report != nil {
		csv, err := b.Report.CSV()
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		kvs[r.Key(KeyReport)] = csv
	}
	if err := r.store.BatchSet(ctx, kvs); err != nil {
		return err
	}
	return r.store.Set(ctx, r.Key(KeyThreshold), thr)
}

// LoadPreprocessor 读取编码器状态
func (r *Repository) LoadPreprocessor(ctx context.Context) (*feature.State, error) {
	data, err := r.get(ctx, KeyPreprocessor)
	if err != nil {
		return nil, err
	}
	st, err := feature.UnmarshalState(data)
	if err != nil {
		return nil, loadErr(KeyPreprocessor, err)
	}
	return st, nil
}

// LoadModel 读取指定文件名的模型
func (r *Repository) LoadModel(ctx context.Context, name string) (*model.GBDT, error) {
	data, err := r.get(ctx, name)
	if err != nil {
		return nil, err
	}
	m, err := model.UnmarshalGBDT(data)
	if err != nil {
		return nil, loadErr(name, err)
	}
	return m, nil
}

// LoadThreshold 读取阈值制品，阈值必须在 [0,1] 内
func (r *Repository) LoadThreshold(ctx context.Context) (*Threshold, error) {
	data, err := r.get(ctx, KeyThreshold)
	if err != nil {
		return nil, err
	}
	var th Threshold
	if err := json.Unmarshal(data, &th); err != nil {
		return nil, loadErr(KeyThreshold, err)
	}
	if th.Threshold < 0 || th.Threshold > 1 {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeArtifactLoad,
			fmt.Sprintf("threshold %v out of [0,1]", th.Threshold))
	}
	if th.ModelKey == "" {
		th.ModelKey = KeyModel
	}
	return &th, nil
}

// LoadReport 读取评估报告 CSV 原文
func (r *Repository) LoadReport(ctx context.Context) ([]byte, error) {
	return r.get(ctx, KeyReport)
}

func (r *Repository) get(ctx context.Context, name string) ([]byte, error) {
	data, err := r.store.Get(ctx, r.Key(name))
	if err != nil {
		return nil, loadErr(name, err)
	}
	return data, nil
}

func loadErr(name string, err error) error {
	return core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeArtifactLoad, "load "+name, err)
}
