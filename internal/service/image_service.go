package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
)

// ImageService 处理单个镜像归档的上传与推送。
type ImageService struct {
	store   port.BundleStore
	engine  port.ImageEngine
	target  port.RegistryCredentials
	history *OperationService
}

func NewImageService(store port.BundleStore, engine port.ImageEngine, target port.RegistryCredentials, history *OperationService) *ImageService {
	return &ImageService{store: store, engine: engine, target: target, history: history}
}

type LoadAndPushRequest struct {
	ImageName string
	Tag       string
	Namespace string
	Archive   io.Reader
}

type LoadAndPushResult struct {
	Image   string `json:"image"`
	Message string `json:"message"`
}

func (r LoadAndPushRequest) validate() error {
	for _, f := range []struct{ field, value string }{
		{"image_name", r.ImageName},
		{"tag", r.Tag},
		{"namespace", r.Namespace},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, f.field)
		}
	}
	if r.Archive == nil {
		return fmt.Errorf("%w: image_file is required", domain.ErrInvalidInput)
	}
	return nil
}

// LoadAndPush 加载上传的镜像归档，打上 <registry>/<namespace>/<image_name>:<tag> 并推送。
// 临时归档在所有路径上都会被删除。
func (s *ImageService) LoadAndPush(ctx context.Context, req LoadAndPushRequest) (res *LoadAndPushResult, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/%s/%s:%s", strings.TrimRight(s.target.Registry, "/"), req.Namespace, req.ImageName, req.Tag)
	if err := domain.ValidateImageRef(target); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.history.Record(ctx, domain.OperationImagePush, req.Namespace, req.ImageName, start, err) }()

	path, cleanup, err := s.store.CreateTemp("image-*.tar", req.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to save image file: %w", err)
	}
	defer cleanup()

	loaded, err := s.engine.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("failed to load image: %w: no image reported", domain.ErrExternalCommand)
	}
	source := loaded[len(loaded)-1]
	slog.Info("image loaded", "source", source, "target", target)

	if err := s.engine.Login(ctx, s.target); err != nil {
		return nil, fmt.Errorf("failed to login to %s: %w", s.target.Registry, err)
	}
	if err := s.engine.Tag(ctx, source, target); err != nil {
		return nil, fmt.Errorf("failed to tag image: %w", err)
	}
	if err := s.engine.Push(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to push image: %w", err)
	}

	return &LoadAndPushResult{
		Image:   target,
		Message: fmt.Sprintf("Image %s loaded, tagged, and pushed successfully", target),
	}, nil
}
