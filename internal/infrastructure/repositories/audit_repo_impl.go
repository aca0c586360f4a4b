package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"skycast.backend/internal/domain/entities"
	"skycast.backend/internal/infrastructure/models"
)

const (
	suspiciousVolumeThreshold     = 100
	suspiciousErrorCountThreshold = 20
	suspiciousErrorRateThreshold  = 0.5
)

// AuditRepository implements audit log and association persistence
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertLog appends one immutable audit entry
func (r *AuditRepository) InsertLog(ctx context.Context, entry *entities.AuditLogEntry) error {
	m := &models.AuditLog{
		ID:             entry.ID,
		Endpoint:       entry.Endpoint,
		Method:         entry.Method,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		ApiKeyID:       entry.ApiKeyID,
		UserID:         entry.UserID,
		RequestParams:  entry.RequestParams.Ptr(),
		ResponseStatus: entry.ResponseStatus,
		ResponseTimeMs: entry.ResponseTimeMs,
		ErrorMessage:   entry.ErrorMessage.Ptr(),
		RequestBytes:   entry.RequestBytes,
		ResponseBytes:  entry.ResponseBytes,
		CreatedAt:      entry.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// UpsertAssociation bumps the hit count for the exact (IP, key, user) triple.
// A null key or user id must match only rows where that column is null.
func (r *AuditRepository) UpsertAssociation(ctx context.Context, entry *entities.AuditLogEntry) error {
	query := r.db.WithContext(ctx).
		Model(&models.Association{}).
		Where("ip_address = ?", entry.IPAddress)
	query = whereNullable(query, "api_key_id", entry.ApiKeyID)
	query = whereNullable(query, "user_id", entry.UserID)

	result := query.Updates(map[string]interface{}{
		"hit_count":       gorm.Expr("hit_count + 1"),
		"last_seen":       entry.CreatedAt,
		"last_user_agent": entry.UserAgent,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	m := &models.Association{
		ID:            uuid.New(),
		IPAddress:     entry.IPAddress,
		ApiKeyID:      entry.ApiKeyID,
		UserID:        entry.UserID,
		HitCount:      1,
		FirstSeen:     entry.CreatedAt,
		LastSeen:      entry.CreatedAt,
		LastUserAgent: entry.UserAgent,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// UsageStats aggregates audit entries matching the filter
func (r *AuditRepository) UsageStats(ctx context.Context, filter entities.UsageStatsFilter) (*entities.UsageStats, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.AuditLog{})
		if filter.ApiKeyID != nil {
			q = q.Where("api_key_id = ?", *filter.ApiKeyID)
		}
		if filter.UserID != nil {
			q = q.Where("user_id = ?", *filter.UserID)
		}
		if filter.Since != nil {
			q = q.Where("created_at >= ?", *filter.Since)
		}
		if filter.Until != nil {
			q = q.Where("created_at <= ?", *filter.Until)
		}
		return q
	}

	stats := &entities.UsageStats{}

	var totals struct {
		TotalRequests int64   `gorm:"column:total_requests"`
		UniqueIPs     int64   `gorm:"column:unique_ips"`
		AvgResponseMs float64 `gorm:"column:avg_response_ms"`
		ErrorCount    int64   `gorm:"column:error_count"`
	}
	err := base().
		Select("COUNT(*) AS total_requests, " +
			"COUNT(DISTINCT ip_address) AS unique_ips, " +
			"COALESCE(AVG(response_time_ms), 0) AS avg_response_ms, " +
			"SUM(CASE WHEN response_status >= 400 THEN 1 ELSE 0 END) AS error_count").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	stats.TotalRequests = totals.TotalRequests
	stats.UniqueIPs = totals.UniqueIPs
	stats.AvgResponseMs = totals.AvgResponseMs
	if totals.TotalRequests > 0 {
		stats.ErrorRate = float64(totals.ErrorCount) / float64(totals.TotalRequests)
	}

	var top []entities.EndpointCount
	err = base().
		Select("endpoint, COUNT(*) AS count").
		Group("endpoint").
		Order("count DESC").
		Limit(10).
		Scan(&top).Error
	if err != nil {
		return nil, err
	}
	stats.TopEndpoints = top

	return stats, nil
}

// ListAssociations lists association rows matching the filter, most hits first
func (r *AuditRepository) ListAssociations(ctx context.Context, filter entities.AssociationFilter) ([]*entities.Association, error) {
	q := r.db.WithContext(ctx).Model(&models.Association{})
	if filter.IPAddress != "" {
		q = q.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.ApiKeyID != nil {
		q = q.Where("api_key_id = ?", *filter.ApiKeyID)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.MinHitCount > 0 {
		q = q.Where("hit_count >= ?", filter.MinHitCount)
	}

	var rows []models.Association
	if err := q.Order("hit_count DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*entities.Association, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		out = append(out, &entities.Association{
			ID:            m.ID,
			IPAddress:     m.IPAddress,
			ApiKeyID:      m.ApiKeyID,
			UserID:        m.UserID,
			HitCount:      m.HitCount,
			FirstSeen:     m.FirstSeen,
			LastSeen:      m.LastSeen,
			LastUserAgent: m.LastUserAgent,
			Geography:     null.StringFromPtr(m.Geography),
		})
	}
	return out, nil
}

// SuspiciousActivity groups recent entries by IP and flags high-volume or
// high-error callers, sorted by volume descending
func (r *AuditRepository) SuspiciousActivity(ctx context.Context, since time.Time) ([]*entities.SuspiciousIP, error) {
	var rows []struct {
		IPAddress    string `gorm:"column:ip_address"`
		RequestCount int64  `gorm:"column:request_count"`
		ErrorCount   int64  `gorm:"column:error_count"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Select("ip_address, COUNT(*) AS request_count, "+
			"SUM(CASE WHEN response_status >= 400 THEN 1 ELSE 0 END) AS error_count").
		Where("created_at >= ?", since).
		Group("ip_address").
		Order("request_count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var flagged []*entities.SuspiciousIP
	for _, row := range rows {
		errorRate := 0.0
		if row.RequestCount > 0 {
			errorRate = float64(row.ErrorCount) / float64(row.RequestCount)
		}

		var reasons []string
		if row.RequestCount > suspiciousVolumeThreshold {
			reasons = append(reasons, "high_volume")
		}
		if errorRate > suspiciousErrorRateThreshold {
			reasons = append(reasons, "high_error_rate")
		}
		if row.ErrorCount > suspiciousErrorCountThreshold {
			reasons = append(reasons, "high_error_count")
		}
		if len(reasons) == 0 {
			continue
		}

		flagged = append(flagged, &entities.SuspiciousIP{
			IPAddress:    row.IPAddress,
			RequestCount: row.RequestCount,
			ErrorCount:   row.ErrorCount,
			ErrorRate:    errorRate,
			Reasons:      reasons,
		})
	}
	return flagged, nil
}

// PurgeLogsBefore deletes audit entries older than the cutoff
func (r *AuditRepository) PurgeLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.AuditLog{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}

// PurgeAssociationsBefore deletes associations not seen since the cutoff
func (r *AuditRepository) PurgeAssociationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Association{}, "last_seen < ?", cutoff)
	return result.RowsAffected, result.Error
}

func whereNullable(q *gorm.DB, column string, id *uuid.UUID) *gorm.DB {
	if id == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *id)
}
