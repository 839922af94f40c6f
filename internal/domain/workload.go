package domain

import (
	"strconv"
	"strings"
)

type WorkloadKind string

const (
	WorkloadDeployment  WorkloadKind = "Deployment"
	WorkloadStatefulSet WorkloadKind = "StatefulSet"
)

// Workload 是资源压力控制循环扫描的工作负载。
type Workload struct {
	Kind      WorkloadKind      `json:"kind"`
	Namespace string            `json:"namespace"`
	Name      string            `json:"name"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Priority 解析优先级 label，label 缺失或不是整数时 ok 为 false。
func (w Workload) Priority(label string) (int, bool) {
	v, found := w.Labels[label]
	if !found {
		return 0, false
	}
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return p, true
}
