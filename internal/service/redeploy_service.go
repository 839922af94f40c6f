package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/manifest"
	"github.com/chiwei-platform/app-bundler/internal/port"
)

// errNoCluster 在未配置集群后端时返回。
var errNoCluster = errors.New("cluster backend is not configured")

type RedeployService struct {
	store       port.BundleStore
	transfer    *ImageTransfer
	cluster     port.ClusterApplier
	placeholder string
	domainValue string
	consoleURL  string
	locks       *BundleLocks
	history     *OperationService
}

type RedeployConfig struct {
	// Placeholder 是 manifest 中待替换的集群域名占位符。
	Placeholder   string
	ClusterDomain string
	ConsoleURL    string
}

func NewRedeployService(
	store port.BundleStore,
	transfer *ImageTransfer,
	cluster port.ClusterApplier,
	cfg RedeployConfig,
	locks *BundleLocks,
	history *OperationService,
) *RedeployService {
	return &RedeployService{
		store:       store,
		transfer:    transfer,
		cluster:     cluster,
		placeholder: cfg.Placeholder,
		domainValue: cfg.ClusterDomain,
		consoleURL:  strings.TrimRight(cfg.ConsoleURL, "/"),
		locks:       locks,
		history:     history,
	}
}

type RedeployRequest struct {
	Path  string             `json:"path"`
	Ports domain.PortMapping `json:"ports"`
	// Namespace 和 AppName 为空时沿用 metadata 中的值。
	Namespace string `json:"-"`
	AppName   string `json:"-"`
}

type RedeployResult struct {
	Namespace string `json:"-"`
	AppName   string `json:"-"`
	URL       string `json:"url"`
}

type redeployTarget struct {
	dir       string
	meta      *domain.Metadata
	namespace string
	appName   string
	rules     manifest.ImportRules
}

// Redeploy 把已有 bundle 部署到目标 namespace/appname。
// 没有回滚：apply 失败时已推送的镜像和已创建的 namespace 保留。
func (s *RedeployService) Redeploy(ctx context.Context, req RedeployRequest) (res *RedeployResult, err error) {
	dir, err := s.store.Locate(req.Path)
	if err != nil {
		return nil, err
	}
	if req.Ports == nil {
		return nil, fmt.Errorf("%w: ports are required", domain.ErrInvalidInput)
	}

	// metadata 与 manifest 都在锁内读取，保证来自同一次导出
	unlock := s.locks.lock(dir)
	defer unlock()

	if _, err := s.store.Resolve(dir); err != nil {
		return nil, err
	}
	meta, err := s.store.ReadMetadata(dir)
	if err != nil {
		return nil, err
	}

	t := redeployTarget{
		dir:       dir,
		meta:      meta,
		namespace: firstNonEmpty(req.Namespace, meta.Namespace),
		appName:   firstNonEmpty(req.AppName, meta.Name),
	}
	t.rules = manifest.ImportRules{
		OriginalName:    meta.Name,
		NewName:         t.appName,
		AssignNodePorts: true,
		Ports:           req.Ports,
	}
	if err := domain.ValidateBundleKey(t.namespace, t.appName); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.history.Record(ctx, domain.OperationRedeploy, t.namespace, t.appName, start, err) }()

	return s.deploy(ctx, t)
}

// Upload 解压上传的 bundle，替换 <root>/<namespace>/<appname>/ 并按原名重新部署。
// 保留 manifest 中已声明的 nodePort。
func (s *RedeployService) Upload(ctx context.Context, archive io.Reader) (res *RedeployResult, err error) {
	zipPath, cleanup, err := s.store.CreateTemp("upload-*.zip", archive)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	defer cleanup()

	staging, err := s.store.Stage(ctx, zipPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.store.RemoveAll(staging) }()

	meta, err := s.store.ReadMetadata(staging)
	if errors.Is(err, domain.ErrMetadataNotFound) {
		return nil, fmt.Errorf("%w: %s is missing from the bundle", domain.ErrInvalidInput, domain.MetadataFile)
	}
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateBundleKey(meta.Namespace, meta.Name); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.history.Record(ctx, domain.OperationUpload, meta.Namespace, meta.Name, start, err) }()

	unlock := s.locks.lock(s.store.Dir(meta.Namespace, meta.Name))
	defer unlock()

	dir, err := s.store.Promote(staging, meta.Namespace, meta.Name)
	if err != nil {
		return nil, err
	}
	slog.Info("bundle uploaded", "namespace", meta.Namespace, "app", meta.Name, "dir", dir)

	return s.deploy(ctx, redeployTarget{
		dir:       dir,
		meta:      meta,
		namespace: meta.Namespace,
		appName:   meta.Name,
		rules:     manifest.ImportRules{OriginalName: meta.Name, NewName: meta.Name},
	})
}

// Download 把 bundle 目录以 zip 写入 w。目录不存在时在写入任何数据前返回 domain.ErrBundleNotFound。
func (s *RedeployService) Download(ctx context.Context, namespace, appName string, w io.Writer) error {
	if err := domain.ValidateBundleKey(namespace, appName); err != nil {
		return err
	}
	dir := s.store.Dir(namespace, appName)
	unlock := s.locks.lock(dir)
	defer unlock()
	return s.store.Archive(ctx, dir, w)
}

func (s *RedeployService) deploy(ctx context.Context, t redeployTarget) (*RedeployResult, error) {
	slog.Info("redeploying app",
		"from_namespace", t.meta.Namespace, "from_app", t.meta.Name,
		"namespace", t.namespace, "app", t.appName)

	raw, err := s.store.ReadFile(t.dir, domain.ManifestFile)
	if err != nil {
		return nil, err
	}
	rewritten, err := manifest.Rewrite(raw, t.rules)
	if err != nil {
		return nil, err
	}

	if s.cluster == nil {
		return nil, errNoCluster
	}

	images := make([]domain.ImageArchive, 0, len(t.meta.Images))
	for _, img := range t.meta.Images {
		// metadata 中的路径可能是导出机器上的绝对路径，只取文件名
		file := filepath.Base(img.Path)
		if err := domain.ValidateArchiveName(file); err != nil {
			return nil, err
		}
		if err := domain.ValidateImageRef(img.Name); err != nil {
			return nil, err
		}
		images = append(images, domain.ImageArchive{
			Name: strings.TrimSpace(img.Name),
			Path: filepath.Join(t.dir, file),
		})
	}
	if err := s.transfer.Transfer(ctx, images); err != nil {
		return nil, err
	}

	final := manifest.SubstitutePlaceholder(rewritten, s.placeholder, s.domainValue)

	if err := s.cluster.EnsureNamespace(ctx, t.namespace); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, fmt.Errorf("failed to create namespace %s: %w", t.namespace, err)
	}
	if err := s.cluster.Apply(ctx, t.namespace, final); err != nil {
		return nil, fmt.Errorf("failed to apply application: %w", err)
	}

	return &RedeployResult{
		Namespace: t.namespace,
		AppName:   t.appName,
		URL:       s.detailURL(t.namespace, t.appName),
	}, nil
}

func (s *RedeployService) detailURL(namespace, appName string) string {
	q := url.Values{}
	q.Set("namespace", namespace)
	q.Set("name", appName)
	return s.consoleURL + "/app/detail?" + q.Encode()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
