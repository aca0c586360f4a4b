package models

import (
	"time"

	"github.com/google/uuid"
)

type RateLimit struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Identifier   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_rate_limits_bucket"`
	Endpoint     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_rate_limits_bucket"`
	RequestCount int       `gorm:"not null;default:0"`
	WindowStart  time.Time `gorm:"not null"`
	WindowEnd    time.Time `gorm:"not null;index"`
	MaxRequests  int       `gorm:"not null"`
	WindowMs     int64     `gorm:"not null"`
	LastRequest  time.Time `gorm:"not null"`
}

func (RateLimit) TableName() string {
	return "rate_limits"
}
