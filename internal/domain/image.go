package domain

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

const (
	DefaultImageOrg = "library"
	DefaultImageTag = "latest"
)

// ImageArchive 是 bundle 中的一个镜像：原始镜像名与本地归档路径。
type ImageArchive struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ArchiveFileName 由镜像名推导确定性的归档文件名，"/" 和 ":" 均替换为 "_"。
func ArchiveFileName(image string) string {
	r := strings.NewReplacer("/", "_", ":", "_")
	return r.Replace(strings.TrimSpace(image)) + ".tar"
}

// ValidateImageRef 校验镜像引用是否合法。以 "-" 开头的名字会被命令行当作选项，一律拒绝。
func ValidateImageRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidImageName)
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: %s", ErrInvalidImageName, ref)
	}
	if _, err := name.ParseReference(ref, name.WeakValidation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageName, err)
	}
	return nil
}

// TargetImageName 计算镜像推送到目标仓库时的名字。
//
//	repo                  -> <registry>/library/repo:latest
//	org/repo              -> <registry>/org/repo:latest
//	registry/org/repo:tag -> <registry>/org/repo:tag
//
// 其他段数视为非法镜像名。
func TargetImageName(registry, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidImageName)
	}
	parts := strings.Split(source, "/")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidImageName, source)
		}
	}

	var path []string
	switch len(parts) {
	case 1:
		path = []string{DefaultImageOrg, parts[0]}
	case 2:
		path = parts
	case 3:
		path = parts[1:]
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidImageName, source)
	}

	target := strings.TrimRight(registry, "/") + "/" + strings.Join(path, "/")
	if !hasTagOrDigest(path[len(path)-1]) {
		target += ":" + DefaultImageTag
	}
	return target, nil
}

// NormalizeImage 补全 manifest 中的镜像引用：缺少 "/" 时加 library/ 前缀，缺少 ":" 时加 :latest。
func NormalizeImage(image string) string {
	if !strings.Contains(image, "/") {
		image = DefaultImageOrg + "/" + image
	}
	if !strings.Contains(image, ":") {
		image += ":" + DefaultImageTag
	}
	return image
}

func hasTagOrDigest(lastSegment string) bool {
	return strings.ContainsAny(lastSegment, ":@")
}
