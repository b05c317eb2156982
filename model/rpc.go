package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rushteam/fraudkit/core"
)

// RPCClassifier 是通过 HTTP 调用外部模型服务的 Classifier 实现。
// 外部服务可以是 XGBoost/TorchServe 等任何遵循下述 JSON 协议的服务。
// 调用经过熔断器：连续失败达到阈值后直接返回 UNAVAILABLE。
type RPCClassifier struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client

	breaker *gobreaker.CircuitBreaker
}

// RPCOption RPCClassifier 选项
type RPCOption func(*RPCClassifier)

// WithHTTPClient 替换默认 http.Client
func WithHTTPClient(c *http.Client) RPCOption {
	return func(m *RPCClassifier) { m.Client = c }
}

// WithBreakerSettings 自定义熔断配置
func WithBreakerSettings(st gobreaker.Settings) RPCOption {
	return func(m *RPCClassifier) { m.breaker = gobreaker.NewCircuitBreaker(st) }
}

func NewRPCClassifier(name, endpoint string, timeout time.Duration, opts ...RPCOption) *RPCClassifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	m := &RPCClassifier{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.breaker == nil {
		m.breaker = newBreaker(name)
	}
	return m
}

// newBreaker 默认熔断：连续 5 次失败后打开，30 秒后半开
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name, Timeout: 30 * time.Second}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 }
	return gobreaker.NewCircuitBreaker(st)
}

// execute 经熔断器调用 fn，熔断打开时返回 UNAVAILABLE
func execute(cb *gobreaker.CircuitBreaker, fn func() ([]float64, error)) ([]float64, error) {
	out, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "model service unavailable", err)
		}
		return nil, err
	}
	return out.([]float64), nil
}

func (m *RPCClassifier) Name() string {
	return m.name
}

// PredictProba 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	{"features_list": [[0.12, -1.3, 1, 0, ...], ...]}
//
// 响应格式（JSON）：
//
//	{"scores": [0.85, 0.02, ...]}
func (m *RPCClassifier) PredictProba(ctx context.Context, X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return []float64{}, nil
	}
	return execute(m.breaker, func() ([]float64, error) { return m.call(ctx, X) })
}

func (m *RPCClassifier) call(ctx context.Context, X [][]float64) ([]float64, error) {
	jsonData, err := json.Marshal(map[string]any{"features_list": X})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Scores) != len(X) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(X), len(result.Scores))
	}
	return result.Scores, nil
}
