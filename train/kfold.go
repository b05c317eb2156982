package train

import (
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// Fold 一次交叉验证划分
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold 不打乱的分层 k 折：
// 把排序后的标签按 i::k 轮流分配得到每折每类的名额，
// 再按原始顺序把每类样本依次填入第 0..k-1 折。
func StratifiedKFold(y []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, core.NewDomainError(core.ModuleSearch, core.ErrorCodeInvalidInput,
			fmt.Sprintf("folds must be at least 2, got %d", k))
	}
	if len(y) < k {
		return nil, core.NewDomainError(core.ModuleSearch, core.ErrorCodeInsufficientData,
			fmt.Sprintf("cannot split %d rows into %d folds", len(y), k))
	}

	var counts [2]int
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, core.NewDomainError(core.ModuleSearch, core.ErrorCodeInvalidInput,
				fmt.Sprintf("label %d at row %d is not binary", v, i))
		}
		counts[v]++
	}

	// 排序后的标签为 counts[0] 个 0 接 counts[1] 个 1，y_sorted[i::k] 中各类的个数
	alloc := make([][2]int, k)
	for pos := 0; pos < len(y); pos++ {
		c := 0
		if pos >= counts[0] {
			c = 1
		}
		alloc[pos%k][c]++
	}

	foldOf := make([]int, len(y))
	var next [2]struct{ fold, used int }
	for i, c := range y {
		st := &next[c]
		for st.used >= alloc[st.fold][c] {
			st.fold++
			st.used = 0
		}
		foldOf[i] = st.fold
		st.used++
	}

	folds := make([]Fold, k)
	for i, f := range foldOf {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}
