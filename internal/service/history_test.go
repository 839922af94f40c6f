package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
)

func TestOperationService_NoRepository(t *testing.T) {
	svc := NewOperationService(nil, nil)
	svc.Record(context.Background(), domain.OperationExport, "ns1", "demo", time.Now(), nil)

	ops, err := svc.List(context.Background(), port.OperationFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ops == nil || len(ops) != 0 {
		t.Errorf("ops = %v, want empty non-nil slice", ops)
	}
}

func TestOperationService_RecordFailure(t *testing.T) {
	repo := &stubOperationRepo{err: errors.New("db down")}
	svc := NewOperationService(repo, nil)

	// 写库失败不会 panic 或影响调用方
	svc.Record(context.Background(), domain.OperationRedeploy, "ns1", "demo", time.Now(), errors.New("failed to push image x"))
	if len(repo.saved) != 1 {
		t.Fatalf("saved = %d", len(repo.saved))
	}
	op := repo.saved[0]
	if op.Status != domain.OperationFailed || op.Message != "failed to push image x" || op.ID == "" {
		t.Errorf("op = %+v", op)
	}
}
