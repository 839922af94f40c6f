package port

import (
	"context"
	"io"

	"github.com/chiwei-platform/app-bundler/internal/domain"
)

// BundleStore 管理 <root>/<namespace>/<appname>/ 下的 bundle 目录。
type BundleStore interface {
	// Dir 返回 bundle 目录路径。
	Dir(namespace, appName string) string
	// Locate 把调用方给出的路径规范化为存储根目录内的路径，越界时返回 domain.ErrInvalidInput。
	Locate(path string) (string, error)
	// Resolve 在 Locate 的基础上要求目录存在，不存在时返回 domain.ErrBundleNotFound。
	Resolve(path string) (string, error)
	// Reset 清空并重建 bundle 目录。
	Reset(namespace, appName string) (string, error)
	Exists(dir string) bool
	WriteFile(dir, name string, data []byte) error
	ReadFile(dir, name string) ([]byte, error)
	WriteMetadata(dir string, meta *domain.Metadata) error
	// ReadMetadata 读取 metadata.json，不存在时返回 domain.ErrMetadataNotFound。
	ReadMetadata(dir string) (*domain.Metadata, error)
	// Archive 把 bundle 目录打成 zip 写入 w。
	Archive(ctx context.Context, dir string, w io.Writer) error
	// Stage 把 archivePath 指向的 zip 解压到暂存目录并返回目录路径。
	Stage(ctx context.Context, archivePath string) (string, error)
	// Promote 用暂存目录替换 bundle 目录。
	Promote(stagingDir, namespace, appName string) (string, error)
	// CreateTemp 把 r 写入存储根目录下的临时文件，返回路径与清理函数。
	CreateTemp(pattern string, r io.Reader) (string, func(), error)
	RemoveAll(path string) error
}
