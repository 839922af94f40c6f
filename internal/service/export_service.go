package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/manifest"
	"github.com/chiwei-platform/app-bundler/internal/port"
)

type ExportService struct {
	store   port.BundleStore
	engine  port.ImageEngine
	source  port.RegistryCredentials
	baseURL string
	locks   *BundleLocks
	history *OperationService
}

func NewExportService(
	store port.BundleStore,
	engine port.ImageEngine,
	source port.RegistryCredentials,
	publicURL string,
	locks *BundleLocks,
	history *OperationService,
) *ExportService {
	return &ExportService{
		store:   store,
		engine:  engine,
		source:  source,
		baseURL: strings.TrimRight(publicURL, "/"),
		locks:   locks,
		history: history,
	}
}

type ExportRequest struct {
	AppName   string                `json:"-"`
	Namespace string                `json:"-"`
	YAML      string                `json:"yaml"`
	Images    []domain.ImageArchive `json:"images"`
}

type ExportResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

func (r ExportRequest) validate() error {
	if strings.TrimSpace(r.YAML) == "" {
		return fmt.Errorf("%w: yaml is required", domain.ErrInvalidInput)
	}
	if len(r.Images) == 0 {
		return fmt.Errorf("%w: images are required", domain.ErrInvalidInput)
	}
	for i, img := range r.Images {
		if strings.TrimSpace(img.Name) == "" {
			return fmt.Errorf("%w: images[%d].name is required", domain.ErrInvalidInput, i)
		}
		if err := domain.ValidateImageRef(img.Name); err != nil {
			return fmt.Errorf("images[%d]: %w", i, err)
		}
	}
	if err := domain.ValidateK8sName("appname", r.AppName); err != nil {
		return err
	}
	return domain.ValidateK8sName("namespace", r.Namespace)
}

// Export 清空并重建 bundle 目录，写入 manifest，拉取并保存每个镜像，最后写 metadata。
// 失败时已保存的镜像归档留在磁盘上。
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (res *ExportResult, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { s.history.Record(ctx, domain.OperationExport, req.Namespace, req.AppName, start, err) }()

	unlock := s.locks.lock(s.store.Dir(req.Namespace, req.AppName))
	defer unlock()

	slog.Info("exporting app", "namespace", req.Namespace, "app", req.AppName, "images", len(req.Images))

	nodePorts, err := manifest.ExtractNodePorts([]byte(req.YAML))
	if err != nil {
		return nil, err
	}

	dir, err := s.store.Reset(req.Namespace, req.AppName)
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteFile(dir, domain.ManifestFile, []byte(req.YAML)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", domain.ManifestFile, err)
	}

	if s.source.Username != "" {
		if err := s.engine.Login(ctx, s.source); err != nil {
			return nil, fmt.Errorf("failed to login to %s: %w", s.source.Registry, err)
		}
	}

	archives := make([]domain.ImageArchive, 0, len(req.Images))
	for _, img := range req.Images {
		name := strings.TrimSpace(img.Name)
		file := domain.ArchiveFileName(name)
		if err := s.engine.Pull(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", name, err)
		}
		if err := s.engine.Save(ctx, name, filepath.Join(dir, file)); err != nil {
			return nil, fmt.Errorf("failed to save image %s: %w", name, err)
		}
		archives = append(archives, domain.ImageArchive{Name: name, Path: file})
	}

	meta := &domain.Metadata{
		Name:      req.AppName,
		Namespace: req.Namespace,
		Images:    archives,
		NodePorts: nodePorts,
	}
	if err := s.store.WriteMetadata(dir, meta); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", domain.MetadataFile, err)
	}

	return &ExportResult{Path: dir, URL: s.downloadURL(req.Namespace, req.AppName)}, nil
}

func (s *ExportService) downloadURL(namespace, appName string) string {
	q := url.Values{}
	q.Set("appname", appName)
	q.Set("namespace", namespace)
	return s.baseURL + "/api/downloadApp?" + q.Encode()
}
