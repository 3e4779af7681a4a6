package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saurav-z/mongodeck"
)

// PrometheusMetrics Prometheus指标收集器，实现MetricsReporter接口
type PrometheusMetrics struct {
	// 命令执行指标
	commandDuration *prometheus.HistogramVec
	commandTotal    *prometheus.CounterVec

	// 连接指标
	activeConnections prometheus.Gauge

	// 错误指标
	errorTotal *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
	mu       sync.Mutex
}

var _ mongodeck.MetricsReporter = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics 创建Prometheus指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mongodeck_command_duration_seconds",
				Help:    "Duration of command execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"host", "kind", "status"},
		),

		commandTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mongodeck_command_total",
				Help: "Total number of executed commands",
			},
			[]string{"host", "kind", "status"},
		),

		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mongodeck_active_connections",
				Help: "Number of cached connections in the registry",
			},
		),

		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mongodeck_errors_total",
				Help: "Total number of command errors",
			},
			[]string{"host", "kind"},
		),

		registry: registry,
	}

	// 注册所有指标
	registry.MustRegister(
		pm.commandDuration,
		pm.commandTotal,
		pm.activeConnections,
		pm.errorTotal,
	)

	return pm
}

// ReportCommandExecution 实现MetricsReporter接口
func (pm *PrometheusMetrics) ReportCommandExecution(ctx context.Context, metrics mongodeck.CommandMetrics) {
	status := "success"
	if metrics.Error != nil {
		status = "error"
		pm.errorTotal.WithLabelValues(metrics.Host, metrics.Kind).Inc()
	}

	pm.commandDuration.WithLabelValues(metrics.Host, metrics.Kind, status).
		Observe(metrics.Duration.Seconds())
	pm.commandTotal.WithLabelValues(metrics.Host, metrics.Kind, status).Inc()
}

// ReportActiveConnections 实现MetricsReporter接口
func (pm *PrometheusMetrics) ReportActiveConnections(count int) {
	pm.activeConnections.Set(float64(count))
}

// Registry 返回底层注册表，用于挂接到已有的 HTTP 服务
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler 返回 /metrics 的 HTTP 处理器
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// StartServer 启动Prometheus HTTP服务器
func (pm *PrometheusMetrics) StartServer(port int) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.server != nil {
		return fmt.Errorf("server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", pm.Handler())

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	pm.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := pm.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Prometheus server error: %v\n", err)
		}
	}()

	return nil
}

// StopServer 停止Prometheus HTTP服务器
func (pm *PrometheusMetrics) StopServer() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.server == nil {
		return nil
	}

	err := pm.server.Close()
	pm.server = nil
	return err
}
