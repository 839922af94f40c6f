// Package manifest 解析并改写多文档 Kubernetes manifest。
// 基于 yaml.v3 的 Node API，保留文档顺序与键顺序。
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"gopkg.in/yaml.v3"
)

// Document 是 manifest 中的一个 YAML 文档。
type Document struct {
	node *yaml.Node
}

// Parse 按出现顺序解析所有文档，空文档被跳过。
func Parse(data []byte) ([]*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []*Document
	for {
		var n yaml.Node
		if err := dec.Decode(&n); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: parse manifest: %v", domain.ErrInvalidInput, err)
		}
		if isEmptyDocument(&n) {
			continue
		}
		docs = append(docs, &Document{node: &n})
	}
	return docs, nil
}

// Encode 把文档重新序列化为以 "---" 分隔的多文档文本。
func Encode(docs []*Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, d := range docs {
		if err := enc.Encode(d.node); err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Kind 返回文档的 kind 字段，不是映射或缺少 kind 时返回空串。
func (d *Document) Kind() string {
	v, _ := scalar(lookup(d.root(), "kind"))
	return v
}

// Name 返回 metadata.name。
func (d *Document) Name() string {
	v, _ := scalar(lookup(d.root(), "metadata", "name"))
	return v
}

func (d *Document) root() *yaml.Node {
	if d.node.Kind == yaml.DocumentNode {
		if len(d.node.Content) == 0 {
			return nil
		}
		return d.node.Content[0]
	}
	return d.node
}

func isEmptyDocument(n *yaml.Node) bool {
	if n.Kind == 0 {
		return true
	}
	if n.Kind != yaml.DocumentNode {
		return false
	}
	if len(n.Content) == 0 {
		return true
	}
	c := n.Content[0]
	return c.Kind == yaml.ScalarNode && c.Tag == "!!null" && c.Value == ""
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// lookup 沿映射键路径查找节点，任一层缺失时返回 nil。
func lookup(n *yaml.Node, path ...string) *yaml.Node {
	n = resolve(n)
	for _, key := range path {
		if n == nil || n.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key {
				next = resolve(n.Content[i+1])
				break
			}
		}
		n = next
	}
	return n
}

func scalar(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

func items(n *yaml.Node) []*yaml.Node {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*yaml.Node, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, resolve(c))
	}
	return out
}

// setInt 设置映射中的整数字段，键不存在时追加到末尾。
func setInt(m *yaml.Node, key string, value int) {
	v := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(value)}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		v,
	)
}

// replaceIfEquals 仅在标量值与 old 完全相等时替换。
func replaceIfEquals(n *yaml.Node, old, replacement string) {
	if v, ok := scalar(n); ok && v == old {
		n.Value = replacement
	}
}
