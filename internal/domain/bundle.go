package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

const (
	ManifestFile = "app.yaml"
	MetadataFile = "metadata.json"

	NodePortMin = 30000
	NodePortMax = 32767
)

// Metadata 是 bundle 目录中的 metadata.json。
type Metadata struct {
	Name      string         `json:"name"`
	Namespace string         `json:"namespace"`
	Images    []ImageArchive `json:"images"`
	NodePorts []NodePort     `json:"nodeports"`
}

// NodePort 是导出时从 NodePort Service 收集的端口声明，导出时 ExternalPort 为空。
type NodePort struct {
	InternalPort string `json:"internal_port"`
	ExternalPort string `json:"external_port"`
}

// PortMapping 是调用方提供的 internal -> external 端口映射。
// 值保留解码后的原始类型（json.Number / float64 / string），以便区分非整数输入。
type PortMapping map[string]any

// Lookup 返回内部端口对应的外部端口，缺失、非整数或越界时返回 *PortError。
func (m PortMapping) Lookup(internalPort string) (int, error) {
	v, ok := m[internalPort]
	if !ok || v == nil {
		return 0, &PortError{InternalPort: internalPort, Reason: "is required"}
	}

	port, ok := asInt(v)
	if !ok {
		return 0, &PortError{InternalPort: internalPort, Reason: "should be an integer"}
	}
	if port < NodePortMin || port > NodePortMax {
		return 0, &PortError{
			InternalPort: internalPort,
			Reason:       "should be between " + strconv.Itoa(NodePortMin) + " and " + strconv.Itoa(NodePortMax),
		}
	}
	return port, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
