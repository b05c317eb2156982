package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rushteam/fraudkit/pkg/conv"
)

// KServe 协议版本
const (
	KServeV1 = "v1"
	KServeV2 = "v2"
)

// KServeClassifier 通过 KServe 推理协议调用托管的模型（如 KServe 的 xgboost runtime）。
//
// V1：POST /v1/models/{name}:predict，{"instances": [[...]]} -> {"predictions": [...]}
// V2：POST /v2/models/{name}[/versions/{v}]/infer，FP64 张量 [batch, dim] -> outputs[0].data
//
// 多列输出（[p0, p1]）时取最后一列作为正类概率。
type KServeClassifier struct {
	Endpoint     string
	ModelName    string
	ModelVersion string
	Protocol     string
	InputName    string
	OutputName   string

	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// KServeOption KServeClassifier 选项
type KServeOption func(*KServeClassifier)

func WithKServeProtocol(protocol string) KServeOption {
	return func(c *KServeClassifier) {
		if protocol == KServeV1 || protocol == KServeV2 {
			c.Protocol = protocol
		}
	}
}

func WithKServeVersion(version string) KServeOption {
	return func(c *KServeClassifier) { c.ModelVersion = version }
}

// WithKServeOutputName V2 响应中优先匹配的输出张量名
func WithKServeOutputName(name string) KServeOption {
	return func(c *KServeClassifier) { c.OutputName = name }
}

func WithKServeHTTPClient(client *http.Client) KServeOption {
	return func(c *KServeClassifier) { c.client = client }
}

func WithKServeBreaker(st gobreaker.Settings) KServeOption {
	return func(c *KServeClassifier) { c.breaker = gobreaker.NewCircuitBreaker(st) }
}

// NewKServeClassifier endpoint 为服务根地址，如 http://fraud.models.svc:8080
func NewKServeClassifier(endpoint, modelName string, timeout time.Duration, opts ...KServeOption) *KServeClassifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	c := &KServeClassifier{
		Endpoint:  endpoint,
		ModelName: modelName,
		Protocol:  KServeV2,
		InputName: "input-0",
		client:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker("kserve:" + modelName)
	}
	return c
}

func (c *KServeClassifier) Name() string { return "kserve:" + c.ModelName }

func (c *KServeClassifier) PredictProba(ctx context.Context, X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return []float64{}, nil
	}
	return execute(c.breaker, func() ([]float64, error) {
		var (
			url  string
			body any
		)
		if c.Protocol == KServeV1 {
			url = fmt.Sprintf("%s/v1/models/%s:predict", c.Endpoint, c.ModelName)
			body = map[string]any{"instances": X}
		} else {
			url = fmt.Sprintf("%s/v2/models/%s", c.Endpoint, c.ModelName)
			if c.ModelVersion != "" {
				url += "/versions/" + c.ModelVersion
			}
			url += "/infer"
			body = c.v2Request(X)
		}
		raw, err := c.post(ctx, url, body)
		if err != nil {
			return nil, err
		}
		var scores []float64
		if c.Protocol == KServeV1 {
			scores, err = parseV1(raw)
		} else {
			scores, err = c.parseV2(raw, len(X))
		}
		if err != nil {
			return nil, err
		}
		if len(scores) != len(X) {
			return nil, fmt.Errorf("kserve %s: expected %d scores, got %d", c.Protocol, len(X), len(scores))
		}
		return scores, nil
	})
}

// Health V1 查询模型状态，V2 查询 /v2/models/{name}/ready
func (c *KServeClassifier) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/v2/models/%s/ready", c.Endpoint, c.ModelName)
	if c.Protocol == KServeV1 {
		url = fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("kserve health create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("kserve health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kserve health failed: status=%d", resp.StatusCode)
	}
	return nil
}

func (c *KServeClassifier) v2Request(X [][]float64) map[string]any {
	dim := len(X[0])
	data := make([]float64, 0, len(X)*dim)
	for _, row := range X {
		data = append(data, row...)
	}
	return map[string]any{
		"inputs": []map[string]any{{
			"name":     c.InputName,
			"shape":    []int{len(X), dim},
			"datatype": "FP64",
			"data":     data,
		}},
	}
}

func (c *KServeClassifier) post(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("kserve marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kserve create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kserve request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kserve read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kserve error: status=%d, body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

func parseV1(raw []byte) ([]float64, error) {
	var out struct {
		Predictions []any `json:"predictions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("kserve v1 parse response: %w", err)
	}
	scores := make([]float64, 0, len(out.Predictions))
	for i, v := range out.Predictions {
		f, ok := positiveScore(v)
		if !ok {
			return nil, fmt.Errorf("kserve v1 prediction %d is not numeric: %v", i, v)
		}
		scores = append(scores, f)
	}
	return scores, nil
}

type v2Output struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

func (c *KServeClassifier) parseV2(raw []byte, rows int) ([]float64, error) {
	var out struct {
		Outputs []v2Output `json:"outputs"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("kserve v2 parse response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("kserve v2 empty outputs")
	}
	t := &out.Outputs[0]
	for i := range out.Outputs {
		if c.OutputName != "" && out.Outputs[i].Name == c.OutputName {
			t = &out.Outputs[i]
			break
		}
	}
	if len(t.Data) == rows || rows == 0 {
		return t.Data, nil
	}
	// [rows, k]：取每行最后一列
	if len(t.Data)%rows != 0 {
		return nil, fmt.Errorf("kserve v2 output %q has %d values for %d rows", t.Name, len(t.Data), rows)
	}
	k := len(t.Data) / rows
	scores := make([]float64, rows)
	for i := range scores {
		scores[i] = t.Data[i*k+k-1]
	}
	return scores, nil
}

// positiveScore 标量直接返回，[p0, p1] 取最后一个
func positiveScore(v any) (float64, bool) {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return 0, false
		}
		return conv.ToFloat64(arr[len(arr)-1])
	}
	return conv.ToFloat64(v)
}
