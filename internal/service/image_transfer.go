package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
)

// ImageTransfer 把 bundle 中的镜像归档加载、改名并推送到目标仓库。
type ImageTransfer struct {
	engine port.ImageEngine
	target port.RegistryCredentials
}

func NewImageTransfer(engine port.ImageEngine, target port.RegistryCredentials) *ImageTransfer {
	return &ImageTransfer{engine: engine, target: target}
}

// Transfer 按顺序处理每个镜像，任一步失败立即返回，已推送的镜像保留。
func (t *ImageTransfer) Transfer(ctx context.Context, images []domain.ImageArchive) error {
	for _, img := range images {
		if err := t.engine.Login(ctx, t.target); err != nil {
			return fmt.Errorf("failed to login to %s: %w", t.target.Registry, err)
		}
		if _, err := t.engine.Load(ctx, img.Path); err != nil {
			return fmt.Errorf("failed to load image %s: %w", img.Name, err)
		}
		target, err := domain.TargetImageName(t.target.Registry, img.Name)
		if err != nil {
			return err
		}
		if err := t.engine.Tag(ctx, img.Name, target); err != nil {
			return fmt.Errorf("failed to tag image %s: %w", img.Name, err)
		}
		if err := t.engine.Push(ctx, target); err != nil {
			return fmt.Errorf("failed to push image %s: %w", target, err)
		}
		slog.Info("image pushed", "source", img.Name, "target", target)
	}
	return nil
}
