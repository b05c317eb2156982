package eval

import (
	"fmt"
	"sort"

	"github.com/rushteam/fraudkit/core"
)

// Curve 精确率-召回率曲线。
// Thresholds 为去重后的分数（升序），Precision/Recall 比 Thresholds 多一个点：
// 末尾追加 (precision=1, recall=0)。
type Curve struct {
	Precision  []float64 `json:"precision"`
	Recall     []float64 `json:"recall"`
	Thresholds []float64 `json:"thresholds"`
}

// PrecisionRecallCurve 计算 PR 曲线，阈值 t 处的预测为 score >= t。
// 空输入返回 INSUFFICIENT_DATA，没有正样本返回 DEGENERATE_LABELS。
func PrecisionRecallCurve(y []int, scores []float64) (*Curve, error) {
	if err := checkInputs(y, scores); err != nil {
		return nil, err
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	// 按分数降序累计，每个不同分数取最后一个位置
	var tps, fps []float64
	var thr []float64
	tp, fp := 0.0, 0.0
	for k, i := range order {
		if y[i] == 1 {
			tp++
		} else {
			fp++
		}
		if k == len(order)-1 || scores[order[k+1]] != scores[i] {
			tps = append(tps, tp)
			fps = append(fps, fp)
			thr = append(thr, scores[i])
		}
	}
	totalPos := tp

	n := len(thr)
	c := &Curve{
		Precision:  make([]float64, n+1),
		Recall:     make([]float64, n+1),
		Thresholds: make([]float64, n),
	}
	// 反转为阈值升序
	for k := 0; k < n; k++ {
		j := n - 1 - k
		c.Thresholds[k] = thr[j]
		c.Precision[k] = tps[j] / (tps[j] + fps[j])
		c.Recall[k] = tps[j] / totalPos
	}
	c.Precision[n] = 1
	c.Recall[n] = 0
	return c, nil
}

// AveragePrecision PR-AUC：按阈值降序 sum((R_n - R_{n-1}) * P_n)，R_0 = 0
func AveragePrecision(y []int, scores []float64) (float64, error) {
	c, err := PrecisionRecallCurve(y, scores)
	if err != nil {
		return 0, err
	}
	return c.AveragePrecision(), nil
}

// AveragePrecision 曲线下的平均精确率
func (c *Curve) AveragePrecision() float64 {
	ap := 0.0
	prev := 0.0
	for k := len(c.Thresholds) - 1; k >= 0; k-- {
		ap += (c.Recall[k] - prev) * c.Precision[k]
		prev = c.Recall[k]
	}
	return ap
}

// F1 每个曲线点的 2PR/(P+R+1e-8)
func (c *Curve) F1() []float64 {
	f1 := make([]float64, len(c.Precision))
	for i := range f1 {
		p, r := c.Precision[i], c.Recall[i]
		f1[i] = 2 * p * r / (p + r + 1e-8)
	}
	return f1
}

// BestThreshold 返回 F1 最大的阈值，并列时取最先出现的（最低阈值）
func (c *Curve) BestThreshold() (threshold, f1 float64) {
	scores := c.F1()
	best := 0
	for i := 1; i < len(c.Thresholds); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return c.Thresholds[best], scores[best]
}

func checkInputs(y []int, scores []float64) error {
	if len(y) != len(scores) {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput,
			fmt.Sprintf("%d labels but %d scores", len(y), len(scores)))
	}
	if len(y) == 0 {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeInsufficientData, "empty evaluation set")
	}
	pos := 0
	for i, v := range y {
		switch v {
		case 1:
			pos++
		case 0:
		default:
			return core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput,
				fmt.Sprintf("label %d at row %d is not binary", v, i))
		}
	}
	if pos > 0 {
		return nil
	}
	return core.NewDomainError(core.ModuleEval, core.ErrorCodeDegenerateLabels, "no positive labels in evaluation set")
}
