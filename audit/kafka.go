package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer 是 *kgo.Client 中 KafkaRecorder 用到的部分
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaRecorderConfig Kafka 记录器配置
type KafkaRecorderConfig struct {
	Brokers []string
	Topic   string

	// BatchSize 攒批大小（建议 100-1000）
	BatchSize int
	// FlushInterval 刷新间隔（建议 1-5 秒）
	FlushInterval time.Duration
	// CloseTimeout 关闭时等待在途消息的最长时间
	CloseTimeout time.Duration

	ClientID    string
	Compression string // gzip, snappy, lz4, zstd

	Logger zerolog.Logger
}

// KafkaRecorder 把决策攒批异步写入 Kafka，key 为决策 ID
type KafkaRecorder struct {
	producer      Producer
	topic         string
	batchSize     int
	flushInterval time.Duration
	closeTimeout  time.Duration
	logger        zerolog.Logger

	mu        sync.Mutex
	buffer    []*Decision
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
	stopCh    chan struct{}
}

// NewKafkaRecorder 创建 Kafka 记录器
func NewKafkaRecorder(cfg KafkaRecorderConfig) (*KafkaRecorder, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "fraudkit-audit"
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.DisableIdempotentWrite(),
	}
	switch cfg.Compression {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return NewKafkaRecorderWithProducer(client, cfg), nil
}

// NewKafkaRecorderWithProducer 使用已有的 Producer 创建记录器
func NewKafkaRecorderWithProducer(p Producer, cfg KafkaRecorderConfig) *KafkaRecorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	r := &KafkaRecorder{
		producer:      p,
		topic:         cfg.Topic,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		closeTimeout:  cfg.CloseTimeout,
		logger:        cfg.Logger,
		buffer:        make([]*Decision, 0, cfg.BatchSize),
		stopCh:        make(chan struct{}),
	}
	r.wg.Add(1)
	go r.flushLoop()
	return r
}

// Record 非阻塞写入缓冲，关闭后静默丢弃
func (r *KafkaRecorder) Record(ctx context.Context, d *Decision) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.buffer = append(r.buffer, d)
	full := len(r.buffer) >= r.batchSize
	r.mu.Unlock()

	if full {
		go r.flush()
	}
	return nil
}

func (r *KafkaRecorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.stopCh:
			return
		}
	}
}

// flush 取出缓冲并异步发送
func (r *KafkaRecorder) flush() {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	batch := make([]*Decision, len(r.buffer))
	copy(batch, r.buffer)
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	for _, d := range batch {
		data, err := json.Marshal(d)
		if err != nil {
			r.logger.Error().Err(err).Str("id", d.ID).Msg("encode decision")
			continue
		}
		rec := &kgo.Record{Topic: r.topic, Key: []byte(d.ID), Value: data}
		r.producer.Produce(context.Background(), rec, func(rec *kgo.Record, err error) {
			if err != nil {
				r.logger.Warn().Err(err).Str("key", string(rec.Key)).Msg("produce decision failed")
			}
		})
	}
}

// Close 停止后台刷新，发送剩余缓冲并等待在途消息（最多 CloseTimeout）
func (r *KafkaRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.stopCh)
		r.wg.Wait()
		r.flush()

		ctx, cancel := context.WithTimeout(context.Background(), r.closeTimeout)
		defer cancel()
		err = r.producer.Flush(ctx)
		r.producer.Close()
	})
	return err
}

var _ Recorder = (*KafkaRecorder)(nil)
