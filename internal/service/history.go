package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/metrics"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/google/uuid"
)

// OperationService 记录并查询操作历史。repo 为 nil 时只上报指标。
type OperationService struct {
	repo    port.OperationRepository
	metrics *metrics.Recorder
}

func NewOperationService(repo port.OperationRepository, recorder *metrics.Recorder) *OperationService {
	return &OperationService{repo: repo, metrics: recorder}
}

func (s *OperationService) List(ctx context.Context, filter port.OperationFilter) ([]*domain.Operation, error) {
	if s == nil || s.repo == nil {
		return []*domain.Operation{}, nil
	}
	return s.repo.FindAll(ctx, filter)
}

// Record 保存一次操作的结果。历史写入失败只记录日志，不影响请求结果。
func (s *OperationService) Record(ctx context.Context, kind domain.OperationKind, namespace, appName string, start time.Time, opErr error) {
	if s == nil {
		return
	}
	s.metrics.ObserveOperation(string(kind), start, opErr)
	if s.repo == nil {
		return
	}

	op := &domain.Operation{
		ID:        uuid.New().String(),
		Kind:      kind,
		Namespace: namespace,
		AppName:   appName,
		Status:    domain.OperationSucceeded,
		CreatedAt: start,
	}
	if opErr != nil {
		op.Status = domain.OperationFailed
		op.Message = opErr.Error()
	}
	// 请求被取消后仍需要落库
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.Save(saveCtx, op); err != nil {
		slog.Warn("failed to save operation", "kind", kind, "namespace", namespace, "app", appName, "error", err)
	}
}
