package port

import "context"

// RegistryCredentials 是访问镜像仓库的凭据，Username 为空表示匿名访问。
type RegistryCredentials struct {
	Registry string
	Username string
	Password string
}

// ImageEngine 抽象容器镜像的拉取、归档、加载、打 tag 与推送。
// 镜像名采用 docker 的引用语法。
type ImageEngine interface {
	Login(ctx context.Context, creds RegistryCredentials) error
	Pull(ctx context.Context, image string) error
	// Save 把本地镜像写入 archivePath（docker save 格式）。
	Save(ctx context.Context, image, archivePath string) error
	// Load 加载归档并返回其中的镜像名；归档中没有可识别的镜像时返回错误。
	Load(ctx context.Context, archivePath string) ([]string, error)
	Tag(ctx context.Context, source, target string) error
	Push(ctx context.Context, image string) error
}
