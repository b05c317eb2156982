package train

import (
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// ImbalanceWeight 正类样本权重 (1-p)/p，p 为正类占比。
// 空标签返回 INSUFFICIENT_DATA，没有正样本返回 DEGENERATE_LABELS。
func ImbalanceWeight(labels []int) (float64, error) {
	if len(labels) == 0 {
		return 0, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData, "no labels")
	}
	pos := 0
	for i, l := range labels {
		switch l {
		case 1:
			pos++
		case 0:
		default:
			return 0, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput,
				fmt.Sprintf("label %d at row %d is not binary", l, i))
		}
	}
	if pos == 0 {
		return 0, core.NewDomainError(core.ModuleTrain, core.ErrorCodeDegenerateLabels, "no positive labels")
	}
	p := float64(pos) / float64(len(labels))
	return (1 - p) / p, nil
}
