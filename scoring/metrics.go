package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 打分服务的 Prometheus 指标
type Metrics struct {
	// Scored 按决策（fraud / legit）统计的打分次数
	Scored *prometheus.CounterVec
	// Latency 单次 Score / ScoreBatch 调用耗时
	Latency prometheus.Histogram
	// Errors 按错误代码统计的失败次数
	Errors *prometheus.CounterVec
	// Loaded 制品是否已加载（0/1）
	Loaded prometheus.Gauge
}

// NewMetrics 创建指标并注册到 reg；reg 为 nil 时不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Scored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fraudkit",
			Subsystem: "scoring",
			Name:      "scored_total",
			Help:      "Transactions scored, by decision.",
		}, []string{"decision"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fraudkit",
			Subsystem: "scoring",
			Name:      "duration_seconds",
			Help:      "Scoring call latency in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fraudkit",
			Subsystem: "scoring",
			Name:      "errors_total",
			Help:      "Scoring failures, by error code.",
		}, []string{"code"}),
		Loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fraudkit",
			Subsystem: "scoring",
			Name:      "artifacts_loaded",
			Help:      "1 once the scoring artifacts are loaded.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Scored, m.Latency, m.Errors, m.Loaded)
	}
	return m
}
