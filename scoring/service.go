// Package scoring 提供在线打分服务：一次性加载制品，之后无锁并发打分。
package scoring

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/fraudkit/artifact"
	"github.com/rushteam/fraudkit/audit"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/model"
)

// 模型后端
const (
	BackendLocal  = "local"
	BackendRPC    = "rpc"
	BackendKServe = "kserve"
)

// Config 打分服务配置
type Config struct {
	// Prefix 制品 key 前缀，默认 artifacts/
	Prefix string
	// ModelBackend local（从制品加载 GBDT）、rpc 或 kserve（调用外部模型服务）
	ModelBackend string
	// ModelEndpoint rpc/kserve 后端地址
	ModelEndpoint string
	// ModelTimeout 远程调用超时
	ModelTimeout time.Duration
	// ModelName kserve 模型名，ModelProtocol 为 v1 或 v2（默认）
	ModelName     string
	ModelProtocol string
}

// Result 一次打分结果
type Result struct {
	Probability float64 `json:"probability"`
	Prediction  int     `json:"prediction"`
	Threshold   float64 `json:"threshold"`
}

// Option 打分服务选项
type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRegisterer 指标注册位置，默认不注册
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) { s.reg = reg }
}

// WithRecorder 每次决策都交给 recorder
func WithRecorder(r audit.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock 派生特征与审计时间戳使用的时钟
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithClassifier 直接指定模型，忽略 ModelBackend
func WithClassifier(c model.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

type loaded struct {
	pre       *feature.State
	clf       model.Classifier
	threshold float64
	modelKey  string
	runID     string
}

// Service 打分服务。Load 成功前所有打分返回 UNINITIALIZED。
type Service struct {
	cfg        Config
	repo       *artifact.Repository
	logger     zerolog.Logger
	reg        prometheus.Registerer
	recorder   audit.Recorder
	now        func() time.Time
	classifier model.Classifier

	deriver *feature.Deriver
	metrics *Metrics

	mu    sync.Mutex
	state atomic.Pointer[loaded]
}

// New 创建打分服务，制品从 s 读取
func New(s core.Store, cfg Config, opts ...Option) *Service {
	if cfg.ModelBackend == "" {
		cfg.ModelBackend = BackendLocal
	}
	svc := &Service{
		cfg:      cfg,
		repo:     artifact.NewRepository(s, cfg.Prefix),
		logger:   zerolog.Nop(),
		recorder: audit.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.deriver = feature.NewDeriver(svc.now)
	svc.metrics = NewMetrics(svc.reg)
	return svc
}

// Metrics 返回服务的指标
func (s *Service) Metrics() *Metrics { return s.metrics }

// Ready 制品是否已加载
func (s *Service) Ready() bool { return s.state.Load() != nil }

// Threshold 当前决策阈值，未加载时返回 UNINITIALIZED
func (s *Service) Threshold() (float64, error) {
	st := s.state.Load()
	if st == nil {
		return 0, uninitialized()
	}
	return st.threshold, nil
}

// Load 一次性加载编码器、阈值和模型。成功后再次调用直接返回；
// 失败不改变服务状态，可以重试。
func (s *Service) Load(ctx context.Context) error {
	if s.state.Load() != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() != nil {
		return nil
	}

	start := time.Now()
	th, err := s.repo.LoadThreshold(ctx)
	if err != nil {
		return err
	}
	pre, err := s.repo.LoadPreprocessor(ctx)
	if err != nil {
		return err
	}
	clf, err := s.loadClassifier(ctx, th.ModelKey, pre)
	if err != nil {
		return err
	}

	s.state.Store(&loaded{pre: pre, clf: clf, threshold: th.Threshold, modelKey: th.ModelKey, runID: th.RunID})
	s.metrics.Loaded.Set(1)
	s.logger.Info().
		Str("model", clf.Name()).
		Str("model_key", th.ModelKey).
		Str("run_id", th.RunID).
		Float64("threshold", th.Threshold).
		Int("features", pre.Dim()).
		Dur("took", time.Since(start)).
		Msg("scoring artifacts loaded")
	return nil
}

func (s *Service) loadClassifier(ctx context.Context, key string, pre *feature.State) (model.Classifier, error) {
	if s.classifier != nil {
		return s.classifier, nil
	}
	switch s.cfg.ModelBackend {
	case BackendLocal:
		m, err := s.repo.LoadModel(ctx, key)
		if err != nil {
			return nil, err
		}
		if m.NFeatures != pre.Dim() {
			return nil, core.NewDomainError(core.ModuleScoring, core.ErrorCodeArtifactLoad,
				fmt.Sprintf("model expects %d features but preprocessor produces %d", m.NFeatures, pre.Dim()))
		}
		return m, nil
	case BackendRPC:
		if s.cfg.ModelEndpoint == "" {
			return nil, core.NewDomainError(core.ModuleScoring, core.ErrorCodeArtifactLoad, "rpc backend requires a model endpoint")
		}
		return model.NewRPCClassifier("rpc", s.cfg.ModelEndpoint, s.cfg.ModelTimeout), nil
	case BackendKServe:
		if s.cfg.ModelEndpoint == "" || s.cfg.ModelName == "" {
			return nil, core.NewDomainError(core.ModuleScoring, core.ErrorCodeArtifactLoad, "kserve backend requires endpoint and model name")
		}
		return model.NewKServeClassifier(s.cfg.ModelEndpoint, s.cfg.ModelName, s.cfg.ModelTimeout,
			model.WithKServeProtocol(s.cfg.ModelProtocol)), nil
	default:
		return nil, core.NewDomainError(core.ModuleScoring, core.ErrorCodeNotSupported,
			fmt.Sprintf("unknown model backend %q", s.cfg.ModelBackend))
	}
}

// Score 对单条交易打分：派生 -> 编码 -> 概率 -> probability >= threshold 判为欺诈
func (s *Service) Score(ctx context.Context, rec core.Record) (*Result, error) {
	out, err := s.ScoreBatch(ctx, []core.Record{rec})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ScoreBatch 批量打分，整批一次调用模型
func (s *Service) ScoreBatch(ctx context.Context, recs []core.Record) ([]*Result, error) {
	start := time.Now()
	defer func() { s.metrics.Latency.Observe(time.Since(start).Seconds()) }()

	st := s.state.Load()
	if st == nil {
		return nil, s.fail(uninitialized())
	}

	derived := make([]core.Record, len(recs))
	X := make([][]float64, len(recs))
	for i, r := range recs {
		d, err := s.deriver.Record(r)
		if err != nil {
			return nil, s.fail(err)
		}
		x, err := st.pre.TransformRecord(d)
		if err != nil {
			return nil, s.fail(err)
		}
		derived[i] = d
		X[i] = x
	}

	probs, err := st.clf.PredictProba(ctx, X)
	if err != nil {
		return nil, s.fail(err)
	}
	if len(probs) != len(recs) {
		return nil, s.fail(fmt.Errorf("model returned %d scores for %d records", len(probs), len(recs)))
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, s.fail(core.NewDomainError(core.ModuleScoring, core.ErrorCodeUnavailable,
				fmt.Sprintf("%s returned invalid probability %v for record %d", st.clf.Name(), p, i)))
		}
	}

	out := make([]*Result, len(recs))
	for i, p := range probs {
		res := &Result{Probability: p, Threshold: st.threshold}
		decision := "legit"
		if p >= st.threshold {
			res.Prediction = 1
			decision = "fraud"
		}
		out[i] = res
		s.metrics.Scored.WithLabelValues(decision).Inc()
		s.audit(ctx, st, derived[i], res)
	}
	return out, nil
}

func (s *Service) audit(ctx context.Context, st *loaded, rec core.Record, res *Result) {
	d := &audit.Decision{
		ID:          uuid.NewString(),
		Timestamp:   s.now().UnixMilli(),
		Probability: res.Probability,
		Prediction:  res.Prediction,
		Threshold:   res.Threshold,
		Model:       st.modelKey,
		Features:    rec,
	}
	if err := s.recorder.Record(ctx, d); err != nil {
		s.logger.Warn().Err(err).Msg("audit record failed")
	}
}

func (s *Service) fail(err error) error {
	code := "INTERNAL"
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
	}
	s.metrics.Errors.WithLabelValues(code).Inc()
	return err
}

func uninitialized() error {
	return core.NewDomainError(core.ModuleScoring, core.ErrorCodeUninitialized, "scoring service not loaded")
}
