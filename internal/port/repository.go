package port

import (
	"context"

	"github.com/chiwei-platform/app-bundler/internal/domain"
)

type OperationFilter struct {
	Namespace string
	AppName   string
	Limit     int
}

type OperationRepository interface {
	Save(ctx context.Context, op *domain.Operation) error
	FindAll(ctx context.Context, filter OperationFilter) ([]*domain.Operation, error)
}
