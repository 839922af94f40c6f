package kubernetes

import (
	"context"
	"fmt"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const gib = 1 << 30

var _ port.ClusterInspector = (*Inspector)(nil)

// Inspector 为资源压力控制循环采样集群状态。
type Inspector struct {
	client kubernetes.Interface
}

func NewInspector(client kubernetes.Interface) *Inspector {
	return &Inspector{client: client}
}

func (i *Inspector) Snapshot(ctx context.Context) (domain.ResourceSnapshot, error) {
	nodes, err := i.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return domain.ResourceSnapshot{}, fmt.Errorf("%w: list nodes: %v", domain.ErrSampling, err)
	}
	pods, err := i.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return domain.ResourceSnapshot{}, fmt.Errorf("%w: list pods: %v", domain.ErrSampling, err)
	}
	return BuildSnapshot(nodes.Items, pods.Items)
}

func (i *Inspector) ListWorkloads(ctx context.Context) ([]domain.Workload, error) {
	deploys, err := i.client.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: list deployments: %v", domain.ErrSampling, err)
	}
	sts, err := i.client.AppsV1().StatefulSets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: list statefulsets: %v", domain.ErrSampling, err)
	}
	return CollectWorkloads(deploys.Items, sts.Items), nil
}

func (i *Inspector) Ping(ctx context.Context) error {
	_, err := i.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	return err
}

// BuildSnapshot 汇总节点 capacity 与 Running/Pending Pod 的容器 limits。
// 没有任何节点容量时返回 domain.ErrSampling，避免除零。
func BuildSnapshot(nodes []corev1.Node, pods []corev1.Pod) (domain.ResourceSnapshot, error) {
	var totalCPU, totalMem, usedCPU, usedMem resource.Quantity
	for _, n := range nodes {
		if q, ok := n.Status.Capacity[corev1.ResourceCPU]; ok {
			totalCPU.Add(q)
		}
		if q, ok := n.Status.Capacity[corev1.ResourceMemory]; ok {
			totalMem.Add(q)
		}
	}
	if totalCPU.IsZero() || totalMem.IsZero() {
		return domain.ResourceSnapshot{}, fmt.Errorf("%w: no node capacity reported", domain.ErrSampling)
	}

	for _, p := range pods {
		if p.Status.Phase != corev1.PodRunning && p.Status.Phase != corev1.PodPending {
			continue
		}
		for _, c := range p.Spec.Containers {
			if q, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
				usedCPU.Add(q)
			}
			if q, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
				usedMem.Add(q)
			}
		}
	}

	return domain.ResourceSnapshot{
		TotalCPUCores:      totalCPU.AsApproximateFloat64(),
		TotalMemoryGiB:     totalMem.AsApproximateFloat64() / gib,
		UsedCPULimitCores:  usedCPU.AsApproximateFloat64(),
		UsedMemoryLimitGiB: usedMem.AsApproximateFloat64() / gib,
	}, nil
}

// CollectWorkloads 先列 Deployment 再列 StatefulSet。
func CollectWorkloads(deploys []appsv1.Deployment, sts []appsv1.StatefulSet) []domain.Workload {
	out := make([]domain.Workload, 0, len(deploys)+len(sts))
	for _, d := range deploys {
		out = append(out, domain.Workload{
			Kind:      domain.WorkloadDeployment,
			Namespace: d.Namespace,
			Name:      d.Name,
			Labels:    d.Labels,
		})
	}
	for _, s := range sts {
		out = append(out, domain.Workload{
			Kind:      domain.WorkloadStatefulSet,
			Namespace: s.Namespace,
			Name:      s.Name,
			Labels:    s.Labels,
		})
	}
	return out
}
