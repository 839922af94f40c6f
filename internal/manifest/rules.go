package manifest

import (
	"bytes"
	"strings"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	LabelDeployManager = "cloud.sealos.io/app-deploy-manager"
	LabelApp           = "app"

	serviceTypeNodePort = "NodePort"
)

// podTemplateKinds 是带 spec.template 的工作负载类型。
var podTemplateKinds = map[string]bool{
	"Deployment":  true,
	"StatefulSet": true,
	"DaemonSet":   true,
}

// ImportRules 描述重新部署时对 manifest 的改写。
type ImportRules struct {
	OriginalName string
	NewName      string
	// AssignNodePorts 为 false 时保留 manifest 中已有的 nodePort。
	AssignNodePorts bool
	Ports           domain.PortMapping
}

// NodePorts 收集所有 NodePort Service 声明的端口，不修改文档。
func NodePorts(docs []*Document) []domain.NodePort {
	ports := make([]domain.NodePort, 0)
	for _, d := range docs {
		for _, p := range nodePortEntries(d) {
			if internal, ok := scalar(lookup(p, "port")); ok {
				ports = append(ports, domain.NodePort{InternalPort: internal})
			}
		}
	}
	return ports
}

// ApplyImportRules 依次执行镜像补全、改名与 NodePort 分配。
// NodePort 校验先于任何改写完成，失败时文档保持不变。
func ApplyImportRules(docs []*Document, rules ImportRules) error {
	type assignment struct {
		port     *yaml.Node
		nodePort int
	}
	var assignments []assignment
	if rules.AssignNodePorts {
		for _, d := range docs {
			for _, p := range nodePortEntries(d) {
				internal, ok := scalar(lookup(p, "port"))
				if !ok {
					continue
				}
				external, err := rules.Ports.Lookup(internal)
				if err != nil {
					return err
				}
				assignments = append(assignments, assignment{port: p, nodePort: external})
			}
		}
	}

	for _, d := range docs {
		normalizeImages(d)
		if rules.OriginalName != "" && rules.NewName != "" && rules.OriginalName != rules.NewName {
			rename(d, rules.OriginalName, rules.NewName)
		}
	}
	for _, a := range assignments {
		setInt(a.port, "nodePort", a.nodePort)
	}
	return nil
}

// SubstitutePlaceholder 替换序列化结果中所有出现的占位符。
func SubstitutePlaceholder(data []byte, token, value string) []byte {
	if token == "" {
		return data
	}
	return bytes.ReplaceAll(data, []byte(token), []byte(value))
}

func nodePortEntries(d *Document) []*yaml.Node {
	if d.Kind() != "Service" {
		return nil
	}
	root := d.root()
	if t, _ := scalar(lookup(root, "spec", "type")); t != serviceTypeNodePort {
		return nil
	}
	return items(lookup(root, "spec", "ports"))
}

func normalizeImages(d *Document) {
	if !podTemplateKinds[d.Kind()] {
		return
	}
	podSpec := lookup(d.root(), "spec", "template", "spec")
	for _, field := range []string{"initContainers", "containers"} {
		for _, c := range items(lookup(podSpec, field)) {
			img := lookup(c, "image")
			if v, ok := scalar(img); ok && strings.TrimSpace(v) != "" {
				img.Value = domain.NormalizeImage(v)
			}
		}
	}
}

func rename(d *Document, old, name string) {
	root := d.root()
	replaceIfEquals(lookup(root, "metadata", "name"), old, name)
	replaceIfEquals(lookup(root, "metadata", "labels", LabelDeployManager), old, name)
	replaceIfEquals(lookup(root, "metadata", "labels", LabelApp), old, name)

	kind := d.Kind()
	if kind == "Service" {
		replaceIfEquals(lookup(root, "spec", "selector", LabelApp), old, name)
	}
	if podTemplateKinds[kind] {
		replaceIfEquals(lookup(root, "spec", "selector", "matchLabels", LabelApp), old, name)
		replaceIfEquals(lookup(root, "spec", "template", "metadata", "labels", LabelApp), old, name)
	}
}
