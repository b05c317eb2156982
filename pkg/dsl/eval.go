package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/fraudkit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		// 允许 record.amt > 0 这类 double 与 int 的比较
		cel.CrossTypeNumericComparisons(true),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Filter 是记录过滤表达式，使用 CEL (Common Expression Language) 实现。
// 表达式在 NewFilter 时编译一次，之后可并发调用 Match。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：record.amt > 0 / record.city_pop >= 1000
//   - 字符串：record.category != "misc_net" / record.state in ["CA", "NY"]
//   - 逻辑：record.amt > 1 && record.gender == "F"
//   - 存在性：has(record.merchant)
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter 编译表达式。空表达式匹配所有记录。
func NewFilter(expr string) (*Filter, error) {
	f := &Filter{expr: expr}
	if expr == "" {
		return f, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return boolean, got %v", out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	f.prg = prg
	return f, nil
}

// Expr 返回原始表达式
func (f *Filter) Expr() string { return f.expr }

// Match 对单条记录求值。
// 访问不存在的字段会返回错误，需要容错时用 has(record.key) 判断。
func (f *Filter) Match(r core.Record) (bool, error) {
	if f.prg == nil {
		return true, nil
	}

	out, _, err := f.prg.Eval(map[string]any{
		"record": map[string]any(r),
	})
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Apply 过滤数据集，返回只包含匹配行的新数据集
func (f *Filter) Apply(ds *core.Dataset) (*core.Dataset, error) {
	if f.prg == nil {
		return ds, nil
	}
	rows := make([]core.Record, 0, len(ds.Rows))
	for i, r := range ds.Rows {
		ok, err := f.Match(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return &core.Dataset{Columns: ds.Columns, Rows: rows}, nil
}
