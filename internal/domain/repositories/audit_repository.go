package repositories

import (
	"context"
	"time"

	"skycast.backend/internal/domain/entities"
)

// AuditRepository defines audit log and association persistence
type AuditRepository interface {
	InsertLog(ctx context.Context, entry *entities.AuditLogEntry) error
	// UpsertAssociation increments the hit count for the exact
	// (IP, key id, user id) triple, creating the row on first observation.
	UpsertAssociation(ctx context.Context, entry *entities.AuditLogEntry) error
	UsageStats(ctx context.Context, filter entities.UsageStatsFilter) (*entities.UsageStats, error)
	ListAssociations(ctx context.Context, filter entities.AssociationFilter) ([]*entities.Association, error)
	SuspiciousActivity(ctx context.Context, since time.Time) ([]*entities.SuspiciousIP, error)
	PurgeLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeAssociationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
