package models

import (
	"time"

	"github.com/google/uuid"
)

type ApiKey struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID      *uuid.UUID `gorm:"type:uuid;index"`
	Name        string     `gorm:"type:varchar(100);not null"`
	KeyFragment string     `gorm:"type:varchar(20);not null;index"` // non-secret lookup fragment
	KeyHash     string     `gorm:"type:varchar(100);not null"`      // bcrypt
	Role        string     `gorm:"type:varchar(10);not null;default:'user'"`
	IsActive    bool       `gorm:"default:true;not null"`
	LastUsedAt  *time.Time
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ApiKey) TableName() string {
	return "api_keys"
}
