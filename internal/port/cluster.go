package port

import (
	"context"

	"github.com/chiwei-platform/app-bundler/internal/domain"
)

// ClusterApplier 负责在目标集群中创建 namespace 并下发 manifest。
type ClusterApplier interface {
	// EnsureNamespace 创建 namespace，已存在时返回 domain.ErrNamespaceExists。
	EnsureNamespace(ctx context.Context, namespace string) error
	// Apply 将多文档 manifest 应用到指定 namespace。
	Apply(ctx context.Context, namespace string, manifest []byte) error
}

// ClusterInspector 为资源压力控制循环提供集群采样。
type ClusterInspector interface {
	// Snapshot 汇总节点容量和 Running/Pending Pod 的 limits。
	Snapshot(ctx context.Context) (domain.ResourceSnapshot, error)
	// ListWorkloads 按 Deployment、StatefulSet 的顺序列出所有 namespace 的工作负载。
	ListWorkloads(ctx context.Context) ([]domain.Workload, error)
	// Ping 检查集群是否可达。
	Ping(ctx context.Context) error
}

// WorkloadPauser 调用外部控制端点暂停工作负载。
type WorkloadPauser interface {
	Pause(ctx context.Context, namespace, name string) error
}
