// Package kubectl 通过 kubectl 命令行访问集群，适用于只有 kubeconfig 和 kubectl 的部署环境。
package kubectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chiwei-platform/app-bundler/internal/adapter/kubernetes"
	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

var (
	_ port.ClusterApplier   = (*Client)(nil)
	_ port.ClusterInspector = (*Client)(nil)
)

type Client struct {
	runner     port.CommandRunner
	binary     string
	kubeconfig string
}

func NewClient(runner port.CommandRunner, binary, kubeconfig string) *Client {
	if binary == "" {
		binary = "kubectl"
	}
	return &Client{runner: runner, binary: binary, kubeconfig: kubeconfig}
}

func (c *Client) EnsureNamespace(ctx context.Context, namespace string) error {
	_, err := c.run(ctx, nil, "create", "namespace", namespace)
	if err != nil {
		var cmdErr *domain.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "already exists") {
			return fmt.Errorf("%w: %s", domain.ErrNamespaceExists, namespace)
		}
		return err
	}
	return nil
}

// Apply 通过 stdin 传入 manifest，不落临时文件。
func (c *Client) Apply(ctx context.Context, namespace string, manifest []byte) error {
	_, err := c.run(ctx, bytes.NewReader(manifest), "apply", "-n", namespace, "-f", "-")
	return err
}

func (c *Client) Snapshot(ctx context.Context) (domain.ResourceSnapshot, error) {
	var nodes corev1.NodeList
	if err := c.getJSON(ctx, &nodes, "get", "nodes", "-o", "json"); err != nil {
		return domain.ResourceSnapshot{}, err
	}
	var pods corev1.PodList
	if err := c.getJSON(ctx, &pods, "get", "pods", "--all-namespaces", "-o", "json"); err != nil {
		return domain.ResourceSnapshot{}, err
	}
	return kubernetes.BuildSnapshot(nodes.Items, pods.Items)
}

func (c *Client) ListWorkloads(ctx context.Context) ([]domain.Workload, error) {
	var deploys appsv1.DeploymentList
	if err := c.getJSON(ctx, &deploys, "get", "deployments", "--all-namespaces", "-o", "json"); err != nil {
		return nil, err
	}
	var sts appsv1.StatefulSetList
	if err := c.getJSON(ctx, &sts, "get", "statefulsets", "--all-namespaces", "-o", "json"); err != nil {
		return nil, err
	}
	return kubernetes.CollectWorkloads(deploys.Items, sts.Items), nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.run(ctx, nil, "version", "-o", "json")
	return err
}

func (c *Client) getJSON(ctx context.Context, into any, args ...string) error {
	res, err := c.run(ctx, nil, args...)
	if err != nil {
		return fmt.Errorf("%w: kubectl %s: %v", domain.ErrSampling, strings.Join(args[:2], " "), err)
	}
	if err := json.Unmarshal([]byte(res.Stdout), into); err != nil {
		return fmt.Errorf("%w: decode kubectl %s: %v", domain.ErrSampling, strings.Join(args[:2], " "), err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, stdin *bytes.Reader, args ...string) (*port.CommandResult, error) {
	if c.kubeconfig != "" {
		args = append(args, "--kubeconfig", c.kubeconfig)
	}
	cmd := port.Command{Name: c.binary, Args: args}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	return c.runner.Run(ctx, cmd)
}
