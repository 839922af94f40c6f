package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/metrics"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/robfig/cron/v3"
)

type PressureMonitorConfig struct {
	// Threshold 是 CPU 或内存 limits 利用率的百分比阈值。
	Threshold     float64
	Interval      time.Duration
	PriorityLabel string
	// PriorityMin 之上（严格大于）的工作负载会被暂停。
	PriorityMin int
}

// PressureMonitor 周期性采样集群 limits 利用率，超过阈值时暂停高优先级值的工作负载。
// 周期之间不保存状态。
type PressureMonitor struct {
	inspector port.ClusterInspector
	pauser    port.WorkloadPauser
	cfg       PressureMonitorConfig
	metrics   *metrics.Recorder
}

func NewPressureMonitor(inspector port.ClusterInspector, pauser port.WorkloadPauser, cfg PressureMonitorConfig, recorder *metrics.Recorder) *PressureMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &PressureMonitor{inspector: inspector, pauser: pauser, cfg: cfg, metrics: recorder}
}

// Run 按固定间隔执行 RunCycle，直到 ctx 结束。上一周期未结束时跳过本次触发。
func (m *PressureMonitor) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(m.cfg.Interval), cron.FuncJob(func() {
		cycleCtx, cancel := context.WithTimeout(ctx, m.cfg.Interval)
		defer cancel()
		if _, err := m.RunCycle(cycleCtx); err != nil {
			slog.Error("resource pressure cycle failed", "error", err)
		}
	}))

	slog.Info("resource pressure monitor started",
		"interval", m.cfg.Interval, "threshold", m.cfg.Threshold, "priority_label", m.cfg.PriorityLabel)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("resource pressure monitor stopped")
	return nil
}

// RunCycle 执行一次采样-判断-暂停，返回成功暂停的工作负载数。
// 单个工作负载暂停失败只记录日志，继续处理下一个。
func (m *PressureMonitor) RunCycle(ctx context.Context) (int, error) {
	snap, err := m.inspector.Snapshot(ctx)
	if err != nil {
		m.metrics.ObserveCycle("error")
		return 0, fmt.Errorf("sample cluster resources: %w", err)
	}
	cpu, mem := snap.CPUUtilization(), snap.MemoryUtilization()
	m.metrics.SetUtilization(cpu, mem)
	slog.Info("cluster resource utilization",
		"cpu_percent", fmt.Sprintf("%.2f", cpu),
		"memory_percent", fmt.Sprintf("%.2f", mem),
		"threshold", m.cfg.Threshold)

	if !snap.Exceeds(m.cfg.Threshold) {
		m.metrics.ObserveCycle("idle")
		return 0, nil
	}

	workloads, err := m.inspector.ListWorkloads(ctx)
	if err != nil {
		m.metrics.ObserveCycle("error")
		return 0, fmt.Errorf("list workloads: %w", err)
	}

	paused := 0
	for _, w := range workloads {
		priority, ok := w.Priority(m.cfg.PriorityLabel)
		if !ok || priority <= m.cfg.PriorityMin {
			continue
		}
		err := m.pauser.Pause(ctx, w.Namespace, w.Name)
		m.metrics.ObservePause(err)
		if err != nil {
			slog.Error("failed to pause workload", "kind", w.Kind, "namespace", w.Namespace, "name", w.Name, "error", err)
			continue
		}
		slog.Info("workload paused", "kind", w.Kind, "namespace", w.Namespace, "name", w.Name, "priority", priority)
		paused++
	}
	m.metrics.ObserveCycle("paused")
	return paused, nil
}
