// Package audit 记录打分决策，用于事后复核与标签回流。
package audit

import (
	"context"
	"sync"
)

// Decision 一次打分决策（轻量级，只包含必要信息）
type Decision struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"` // Unix 毫秒
	Probability float64        `json:"probability"`
	Prediction  int            `json:"prediction"`
	Threshold   float64        `json:"threshold"`
	Model       string         `json:"model"`
	Features    map[string]any `json:"features,omitempty"`
}

// Recorder 决策记录器接口（异步非阻塞）
type Recorder interface {
	// Record 记录一次决策，不应阻塞打分路径
	Record(ctx context.Context, d *Decision) error

	// Close 优雅关闭（等待缓冲数据发送完成）
	Close() error
}

// MemoryRecorder 内存记录器，用于测试/开发
type MemoryRecorder struct {
	mu        sync.Mutex
	decisions []*Decision
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(ctx context.Context, d *Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

// Decisions 返回已记录决策的副本
func (m *MemoryRecorder) Decisions() []*Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Decision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

func (m *MemoryRecorder) Close() error { return nil }

// Nop 丢弃所有决策
type Nop struct{}

func (Nop) Record(context.Context, *Decision) error { return nil }
func (Nop) Close() error                            { return nil }

var (
	_ Recorder = (*MemoryRecorder)(nil)
	_ Recorder = Nop{}
)
