package models

import (
	"time"

	"github.com/google/uuid"
)

// Association has exactly one row per distinct (IP, key id, user id) triple,
// where null key/user ids are values of their own, not wildcards.
type Association struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	IPAddress     string     `gorm:"type:varchar(45);not null;index"`
	ApiKeyID      *uuid.UUID `gorm:"type:uuid;index"`
	UserID        *uuid.UUID `gorm:"type:uuid;index"`
	HitCount      int64      `gorm:"not null;default:1"`
	FirstSeen     time.Time  `gorm:"not null"`
	LastSeen      time.Time  `gorm:"not null;index"`
	LastUserAgent string     `gorm:"type:varchar(512);not null"`
	Geography     *string    `gorm:"type:varchar(128)"`
}

func (Association) TableName() string {
	return "associations"
}
