package manifest

import "github.com/chiwei-platform/app-bundler/internal/domain"

// ExtractNodePorts 解析 manifest 并返回 NodePort 端口声明。
func ExtractNodePorts(data []byte) ([]domain.NodePort, error) {
	docs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NodePorts(docs), nil
}

// Rewrite 解析、改写并重新序列化 manifest。
func Rewrite(data []byte, rules ImportRules) ([]byte, error) {
	docs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := ApplyImportRules(docs, rules); err != nil {
		return nil, err
	}
	return Encode(docs)
}
