package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// unreachableDB 指向一个拒绝连接的本地端口，gorm 只在执行语句时才会连接。
func unreachableDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=bundler dbname=bundler sslmode=disable connect_timeout=1",
	}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func TestOperationRepo_SaveReportsDriverError(t *testing.T) {
	repo := NewOperationRepo(unreachableDB(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := repo.Save(ctx, &domain.Operation{
		ID:        "op-1",
		Kind:      domain.OperationExport,
		Namespace: "ns1",
		AppName:   "demo",
		Status:    domain.OperationSucceeded,
		CreatedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected error from unreachable database")
	}
	if !strings.Contains(err.Error(), "save operation op-1") {
		t.Errorf("error = %q, want it to name the operation", err)
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("connection failure reported as a conflict: %v", err)
	}
}

func TestOperationModelMapping(t *testing.T) {
	op := &domain.Operation{
		ID:        "op-2",
		Kind:      domain.OperationRedeploy,
		Namespace: "ns2",
		AppName:   "shop",
		Status:    domain.OperationFailed,
		Message:   "failed to apply application: denied",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	m := operationToModel(op)
	if m.TableName() != "operations" || m.Kind != "redeploy" || m.Status != "failed" {
		t.Errorf("model = %+v", m)
	}
	if got := modelToOperation(m); *got != *op {
		t.Errorf("mapped back to %+v, want %+v", got, op)
	}
}
