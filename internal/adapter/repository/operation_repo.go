package repository

import (
	"context"
	"fmt"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"gorm.io/gorm"
)

const defaultListLimit = 100

var _ port.OperationRepository = (*OperationRepo)(nil)

type OperationRepo struct {
	db *gorm.DB
}

func NewOperationRepo(db *gorm.DB) *OperationRepo {
	return &OperationRepo{db: db}
}

// Save 追加一条操作记录。
func (r *OperationRepo) Save(ctx context.Context, op *domain.Operation) error {
	if err := r.db.WithContext(ctx).Create(operationToModel(op)).Error; err != nil {
		return fmt.Errorf("save operation %s: %w", op.ID, err)
	}
	return nil
}

// FindAll 按创建时间倒序返回操作记录，Limit 为 0 时使用默认上限。
func (r *OperationRepo) FindAll(ctx context.Context, filter port.OperationFilter) ([]*domain.Operation, error) {
	q := r.db.WithContext(ctx).Model(&OperationModel{})
	if filter.Namespace != "" {
		q = q.Where("namespace = ?", filter.Namespace)
	}
	if filter.AppName != "" {
		q = q.Where("app_name = ?", filter.AppName)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var models []OperationModel
	if err := q.Order("created_at desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	ops := make([]*domain.Operation, 0, len(models))
	for i := range models {
		ops = append(ops, modelToOperation(&models[i]))
	}
	return ops, nil
}

func operationToModel(op *domain.Operation) *OperationModel {
	return &OperationModel{
		ID:        op.ID,
		Kind:      string(op.Kind),
		Namespace: op.Namespace,
		AppName:   op.AppName,
		Status:    string(op.Status),
		Message:   op.Message,
		CreatedAt: op.CreatedAt,
	}
}

func modelToOperation(m *OperationModel) *domain.Operation {
	return &domain.Operation{
		ID:        m.ID,
		Kind:      domain.OperationKind(m.Kind),
		Namespace: m.Namespace,
		AppName:   m.AppName,
		Status:    domain.OperationStatus(m.Status),
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}
