package audit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	flushed bool
	closed  bool
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	promise(r, nil)
}

func (f *fakeProducer) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = true
	return nil
}

func (f *fakeProducer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeProducer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func TestMemoryRecorder(t *testing.T) {
	r := NewMemoryRecorder()
	require.NoError(t, r.Record(context.Background(), &Decision{ID: "a", Prediction: 1}))
	require.NoError(t, r.Record(context.Background(), &Decision{ID: "b"}))

	got := r.Decisions()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.NoError(t, r.Close())
}

func TestKafkaRecorder_FlushOnClose(t *testing.T) {
	p := &fakeProducer{}
	r := NewKafkaRecorderWithProducer(p, KafkaRecorderConfig{
		Topic:         "fraud-decisions",
		BatchSize:     100,
		FlushInterval: time.Hour,
		Logger:        zerolog.Nop(),
	})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Record(context.Background(), &Decision{ID: id, Probability: 0.9, Prediction: 1}))
	}
	assert.Equal(t, 0, p.count())

	require.NoError(t, r.Close())
	require.Equal(t, 3, p.count())
	assert.True(t, p.flushed)
	assert.True(t, p.closed)

	rec := p.records[0]
	assert.Equal(t, "fraud-decisions", rec.Topic)
	assert.Equal(t, "a", string(rec.Key))
	var d Decision
	require.NoError(t, json.Unmarshal(rec.Value, &d))
	assert.Equal(t, 1, d.Prediction)

	// 关闭后写入被丢弃
	require.NoError(t, r.Record(context.Background(), &Decision{ID: "late"}))
	assert.Equal(t, 3, p.count())
	assert.NoError(t, r.Close())
}

func TestKafkaRecorder_BatchTriggersFlush(t *testing.T) {
	p := &fakeProducer{}
	r := NewKafkaRecorderWithProducer(p, KafkaRecorderConfig{
		Topic:         "t",
		BatchSize:     2,
		FlushInterval: time.Hour,
		Logger:        zerolog.Nop(),
	})
	defer r.Close()

	require.NoError(t, r.Record(context.Background(), &Decision{ID: "a"}))
	require.NoError(t, r.Record(context.Background(), &Decision{ID: "b"}))
	assert.Eventually(t, func() bool { return p.count() == 2 }, time.Second, 5*time.Millisecond)
}
