package repository

import "time"

// OperationModel 是 Operation 的数据库持久化模型。
type OperationModel struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"index"`
	Namespace string `gorm:"index:idx_ns_app"`
	AppName   string `gorm:"index:idx_ns_app"`
	Status    string
	Message   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (OperationModel) TableName() string { return "operations" }
