package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Count evaluation modes
const (
	// ModePushdown the filter was evaluated by the datasource
	ModePushdown = "pushdown"
	// ModeMemory rows were loaded and filtered in process
	ModeMemory = "memory"
)

// MetricsCollector 监控指标收集器. 每个实例使用独立的 registry.
type MetricsCollector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeQueries   prometheus.Gauge
	counts          *prometheus.CounterVec
	countDuration   *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	sharedCounts    prometheus.Counter

	startTime time.Time
}

// NewMetricsCollector 创建监控指标收集器
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "odata_requests_total",
			Help: "Total OData requests by method, resource kind and status code",
		}, []string{"method", "kind", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odata_request_duration_seconds",
			Help:    "OData request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}, []string{"kind"}),
		activeQueries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "odata_active_queries",
			Help: "Queries currently executing",
		}),
		counts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "odata_counts_total",
			Help: "Counts executed by evaluation mode (pushdown or memory)",
		}, []string{"mode"}),
		countDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odata_count_duration_seconds",
			Help:    "Count evaluation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"mode"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "odata_errors_total",
			Help: "Errors by error code",
		}, []string{"code"}),
		sharedCounts: factory.NewCounter(prometheus.CounterOpts{
			Name: "odata_count_shared_total",
			Help: "Count requests answered by a concurrent identical evaluation",
		}),
		startTime: time.Now(),
	}
}

// RecordRequest 记录一次 HTTP 请求
func (m *MetricsCollector) RecordRequest(method, kind string, status int, duration time.Duration) {
	m.requests.WithLabelValues(method, kind, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCount 记录一次计数
func (m *MetricsCollector) RecordCount(mode string, duration time.Duration) {
	m.counts.WithLabelValues(mode).Inc()
	m.countDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordShared 记录共享结果的计数请求
func (m *MetricsCollector) RecordShared() {
	m.sharedCounts.Inc()
}

// RecordError 记录错误
func (m *MetricsCollector) RecordError(code string) {
	m.errors.WithLabelValues(code).Inc()
}

// StartQuery 开始查询
func (m *MetricsCollector) StartQuery() {
	m.activeQueries.Inc()
}

// EndQuery 结束查询
func (m *MetricsCollector) EndQuery() {
	m.activeQueries.Dec()
}

// GetUptime 获取运行时间
func (m *MetricsCollector) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// Registry 返回 prometheus registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
