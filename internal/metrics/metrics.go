package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tier 标签取值。
const (
	TierMemory  = "memory"
	TierDisk    = "disk"
	TierNetwork = "network"
	TierMiss    = "miss"
)

const namespace = "asset_hub"

// Metrics 汇总缓存各层命中、回源与上传指标。nil 接收者上的方法都是 no-op。
type Metrics struct {
	registry      *prometheus.Registry
	resolves      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	sharedFetches prometheus.Counter
	uploads       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
}

// New 创建并注册全部指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Asset resolutions by the tier that answered.",
		}, []string{"tier"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Network fetches started by the coordinator.",
		}, []string{"result"}),
		sharedFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_shared_total",
			Help:      "Resolutions answered by a fetch shared with other callers.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_total",
			Help:      "Uploads by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of network fetches including decode.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}

	m.registry.MustRegister(
		m.resolves,
		m.fetches,
		m.sharedFetches,
		m.uploads,
		m.fetchDuration,
	)
	return m
}

// Registry 返回私有 registry，便于测试采集。
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 Prometheus exposition handler。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolve 记录某一层应答了一次 resolve。
func (m *Metrics) ObserveResolve(tier string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(tier).Inc()
}

// ObserveFetch 记录一次真实回源的结果与耗时。
func (m *Metrics) ObserveFetch(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result(ok)).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

// ObserveShared 记录一次挂靠到共享 fetch 的 resolve。
func (m *Metrics) ObserveShared() {
	if m == nil {
		return
	}
	m.sharedFetches.Inc()
}

// ObserveUpload 记录上传结果。
func (m *Metrics) ObserveUpload(ok bool) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
