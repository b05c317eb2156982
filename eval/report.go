package eval

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/model"
)

// ClassMetrics 单个类别（或平均行）的指标
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// Report 评估报告，生成后只读
type Report struct {
	RunID     string  `json:"run_id"`
	Threshold float64 `json:"best_threshold"`
	PRAUC     float64 `json:"pr_auc"`
	Accuracy  float64 `json:"accuracy"`

	// Classes 下标即类别 0/1
	Classes     [2]ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics    `json:"macro_avg"`
	WeightedAvg ClassMetrics    `json:"weighted_avg"`

	// Confusion 行为真实标签，列为预测标签
	Confusion [2][2]int `json:"confusion"`

	Curve *Curve `json:"-"`
}

// Calibrate 在评估集上选择 F1 最优阈值并生成报告。
func Calibrate(ctx context.Context, clf model.Classifier, X [][]float64, y []int) (float64, *Report, error) {
	if len(X) != len(y) {
		return 0, nil, core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput,
			fmt.Sprintf("X has %d rows but y has %d", len(X), len(y)))
	}
	if err := checkInputs(y, make([]float64, len(y))); err != nil {
		return 0, nil, err
	}

	probs, err := clf.PredictProba(ctx, X)
	if err != nil {
		return 0, nil, fmt.Errorf("predict evaluation set: %w", err)
	}
	curve, err := PrecisionRecallCurve(y, probs)
	if err != nil {
		return 0, nil, err
	}
	threshold, _ := curve.BestThreshold()

	report := NewReport(y, probs, threshold)
	report.PRAUC = curve.AveragePrecision()
	report.Curve = curve
	return threshold, report, nil
}

// NewReport 以 score >= threshold 为正类预测，计算混淆矩阵与分类报告（zero_division=0）。
// y 须为 0/1，Calibrate 在调用前已校验。
func NewReport(y []int, probs []float64, threshold float64) *Report {
	r := &Report{RunID: uuid.NewString(), Threshold: threshold}
	for i, label := range y {
		pred := 0
		if probs[i] >= threshold {
			pred = 1
		}
		r.Confusion[label][pred]++
	}

	n := len(y)
	correct := r.Confusion[0][0] + r.Confusion[1][1]
	r.Accuracy = safeDiv(float64(correct), float64(n))

	for c := 0; c < 2; c++ {
		tp := r.Confusion[c][c]
		predicted := r.Confusion[0][c] + r.Confusion[1][c]
		support := r.Confusion[c][0] + r.Confusion[c][1]
		p := safeDiv(float64(tp), float64(predicted))
		rec := safeDiv(float64(tp), float64(support))
		r.Classes[c] = ClassMetrics{
			Precision: p,
			Recall:    rec,
			F1:        safeDiv(2*p*rec, p+rec),
			Support:   support,
		}
	}

	a, b := r.Classes[0], r.Classes[1]
	r.MacroAvg = ClassMetrics{
		Precision: (a.Precision + b.Precision) / 2,
		Recall:    (a.Recall + b.Recall) / 2,
		F1:        (a.F1 + b.F1) / 2,
		Support:   n,
	}
	wa, wb := float64(a.Support), float64(b.Support)
	r.WeightedAvg = ClassMetrics{
		Precision: safeDiv(a.Precision*wa+b.Precision*wb, float64(n)),
		Recall:    safeDiv(a.Recall*wa+b.Recall*wb, float64(n)),
		F1:        safeDiv(a.F1*wa+b.F1*wb, float64(n)),
		Support:   n,
	}
	return r
}

// PredictedPositives 被判为欺诈的样本数
func (r *Report) PredictedPositives() int {
	return r.Confusion[0][1] + r.Confusion[1][1]
}

// Total 样本总数
func (r *Report) Total() int {
	return r.Confusion[0][0] + r.Confusion[0][1] + r.Confusion[1][0] + r.Confusion[1][1]
}

// CSV 导出表格形式的报告：
//
//	,precision,recall,f1-score,support,pr_auc,best_threshold
//	0,...
//	1,...
//	accuracy,...
//	macro avg,...
//	weighted avg,...
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"", "precision", "recall", "f1-score", "support", "pr_auc", "best_threshold"},
		r.row("0", r.Classes[0]),
		r.row("1", r.Classes[1]),
		r.row("accuracy", ClassMetrics{Precision: r.Accuracy, Recall: r.Accuracy, F1: r.Accuracy, Support: r.Total()}),
		r.row("macro avg", r.MacroAvg),
		r.row("weighted avg", r.WeightedAvg),
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Report) row(name string, m ClassMetrics) []string {
	return []string{
		name,
		formatFloat(m.Precision),
		formatFloat(m.Recall),
		formatFloat(m.F1),
		strconv.Itoa(m.Support),
		formatFloat(r.PRAUC),
		formatFloat(r.Threshold),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
