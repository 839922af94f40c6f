package domain

import "time"

type OperationKind string

const (
	OperationExport    OperationKind = "export"
	OperationRedeploy  OperationKind = "redeploy"
	OperationUpload    OperationKind = "upload"
	OperationImagePush OperationKind = "image_push"
)

type OperationStatus string

const (
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
)

// Operation 记录一次导出/重新部署/镜像推送的结果。
// 失败时不做回滚，Message 保存第一个失败步骤的错误信息。
type Operation struct {
	ID        string          `json:"id"`
	Kind      OperationKind   `json:"kind"`
	Namespace string          `json:"namespace"`
	AppName   string          `json:"app_name"`
	Status    OperationStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
