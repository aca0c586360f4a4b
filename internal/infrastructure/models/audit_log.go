package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Endpoint       string     `gorm:"type:varchar(100);not null;index"`
	Method         string     `gorm:"type:varchar(10);not null"`
	IPAddress      string     `gorm:"type:varchar(45);not null;index"`
	UserAgent      string     `gorm:"type:varchar(512);not null"`
	ApiKeyID       *uuid.UUID `gorm:"type:uuid;index"`
	UserID         *uuid.UUID `gorm:"type:uuid;index"`
	RequestParams  *string    `gorm:"type:text"`
	ResponseStatus int        `gorm:"not null;index"`
	ResponseTimeMs int64      `gorm:"not null"`
	ErrorMessage   *string    `gorm:"type:text"`
	RequestBytes   int64      `gorm:"not null;default:0"`
	ResponseBytes  int64      `gorm:"not null;default:0"`
	CreatedAt      time.Time  `gorm:"not null;index"`
}

func (AuditLog) TableName() string {
	return "api_audit_logs"
}
