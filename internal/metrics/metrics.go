// Package metrics 定义 app-bundler 暴露的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "app_bundler"

// Recorder 的所有方法对 nil 接收者安全，未启用指标时直接传 nil。
type Recorder struct {
	gatherer prometheus.Gatherer

	operations     *prometheus.CounterVec
	operationTime  *prometheus.HistogramVec
	cpuUtilization prometheus.Gauge
	memUtilization prometheus.Gauge
	pauses         *prometheus.CounterVec
	monitorCycles  *prometheus.CounterVec
}

func NewRecorder(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Bundle and image operations by kind and result.",
		}, []string{"operation", "result"}),
		operationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of bundle and image operations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"operation"}),
		cpuUtilization: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_cpu_limit_utilization_percent",
			Help:      "Sum of pod CPU limits as a percentage of node capacity.",
		}),
		memUtilization: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_memory_limit_utilization_percent",
			Help:      "Sum of pod memory limits as a percentage of node capacity.",
		}),
		pauses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workload_pauses_total",
			Help:      "Pause requests sent to the control plane by result.",
		}, []string{"result"}),
		monitorCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pressure_monitor_cycles_total",
			Help:      "Resource pressure monitor cycles by result.",
		}, []string{"result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (r *Recorder) ObserveOperation(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, result(err)).Inc()
	r.operationTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (r *Recorder) SetUtilization(cpu, memory float64) {
	if r == nil {
		return
	}
	r.cpuUtilization.Set(cpu)
	r.memUtilization.Set(memory)
}

func (r *Recorder) ObservePause(err error) {
	if r == nil {
		return
	}
	r.pauses.WithLabelValues(result(err)).Inc()
}

// ObserveCycle 记录一次监控周期，outcome 取 "idle"、"paused" 或 "error"。
func (r *Recorder) ObserveCycle(outcome string) {
	if r == nil {
		return
	}
	r.monitorCycles.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
