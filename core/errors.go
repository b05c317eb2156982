package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）、消息（Message）与来源模块（Module）
//   - Err 保存底层原因，支持 errors.Unwrap / errors.As
//   - Is 按 Code 比较，支持 errors.Is(err, core.ErrSchemaMismatch)
//
// 使用场景：
//   - Feature 错误：INSUFFICIENT_DATA, SCHEMA_MISMATCH
//   - Train 错误：DEGENERATE_LABELS, TRAINING_FAILED
//   - Scoring 错误：UNINITIALIZED, ARTIFACT_LOAD
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "SCHEMA_MISMATCH"）
	Message string // 错误消息
	Module  string // 模块名称（如 "feature", "train", "scoring"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Module + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Module + ": " + e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 按错误代码匹配，Module 不参与比较。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带底层原因的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound         = "NOT_FOUND"         // 资源不存在
	ErrorCodeNotSupported     = "NOT_SUPPORTED"     // 操作不支持
	ErrorCodeUnavailable      = "UNAVAILABLE"       // 服务不可用
	ErrorCodeInvalidInput     = "INVALID_INPUT"     // 输入无效
	ErrorCodeInsufficientData = "INSUFFICIENT_DATA" // 拟合数据为空
	ErrorCodeDegenerateLabels = "DEGENERATE_LABELS" // 标签中没有正样本
	ErrorCodeSchemaMismatch   = "SCHEMA_MISMATCH"   // 列集合不一致或缺少目标列
	ErrorCodeTraining         = "TRAINING_FAILED"   // 模型拟合失败
	ErrorCodeUninitialized    = "UNINITIALIZED"     // 服务尚未加载制品
	ErrorCodeArtifactLoad     = "ARTIFACT_LOAD"     // 制品缺失或损坏
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 存储模块
	ModuleDataset  = "dataset"  // 数据读取与校验
	ModuleFeature  = "feature"  // 特征编码
	ModuleTrain    = "train"    // 训练与不平衡修正
	ModuleSearch   = "search"   // 超参搜索
	ModuleEval     = "eval"     // 阈值校准与评估
	ModuleScoring  = "scoring"  // 在线打分
	ModuleArtifact = "artifact" // 制品持久化
	ModuleModel    = "model"    // 模型实现
	ModulePipeline = "pipeline" // 训练流水线
)

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrInsufficientData = NewDomainError("", ErrorCodeInsufficientData, "insufficient data")
	ErrDegenerateLabels = NewDomainError("", ErrorCodeDegenerateLabels, "degenerate labels")
	ErrSchemaMismatch   = NewDomainError("", ErrorCodeSchemaMismatch, "schema mismatch")
	ErrTraining         = NewDomainError("", ErrorCodeTraining, "training failed")
	ErrUninitialized    = NewDomainError("", ErrorCodeUninitialized, "service not initialized")
	ErrArtifactLoad     = NewDomainError("", ErrorCodeArtifactLoad, "artifact load failed")
	ErrInvalidInput     = NewDomainError("", ErrorCodeInvalidInput, "invalid input")
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsInsufficientData 检查错误是否为 INSUFFICIENT_DATA
func IsInsufficientData(err error) bool { return hasCode(err, ErrorCodeInsufficientData) }

// IsDegenerateLabels 检查错误是否为 DEGENERATE_LABELS
func IsDegenerateLabels(err error) bool { return hasCode(err, ErrorCodeDegenerateLabels) }

// IsSchemaMismatch 检查错误是否为 SCHEMA_MISMATCH
func IsSchemaMismatch(err error) bool { return hasCode(err, ErrorCodeSchemaMismatch) }

// IsTraining 检查错误是否为 TRAINING_FAILED
func IsTraining(err error) bool { return hasCode(err, ErrorCodeTraining) }

// IsUninitialized 检查错误是否为 UNINITIALIZED
func IsUninitialized(err error) bool { return hasCode(err, ErrorCodeUninitialized) }

// IsArtifactLoad 检查错误是否为 ARTIFACT_LOAD
func IsArtifactLoad(err error) bool { return hasCode(err, ErrorCodeArtifactLoad) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }
