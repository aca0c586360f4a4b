package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/infrastructure/models"
)

// RateLimitRepository implements rate limit window persistence
type RateLimitRepository struct {
	db *gorm.DB
}

// NewRateLimitRepository creates a new rate limit repository
func NewRateLimitRepository(db *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Find loads the window row for an (identifier, endpoint) pair
func (r *RateLimitRepository) Find(ctx context.Context, identifier, endpoint string) (*entities.RateLimitWindow, error) {
	var m models.RateLimit
	if err := r.db.WithContext(ctx).
		Where("identifier = ? AND endpoint = ?", identifier, endpoint).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toRateLimitEntity(&m), nil
}

// Create inserts a fresh window row. The unique (identifier, endpoint) index
// makes a concurrent double-create fail rather than duplicate.
func (r *RateLimitRepository) Create(ctx context.Context, w *entities.RateLimitWindow) error {
	m := &models.RateLimit{
		ID:           w.ID,
		Identifier:   w.Identifier,
		Endpoint:     w.Endpoint,
		RequestCount: w.RequestCount,
		WindowStart:  w.WindowStart,
		WindowEnd:    w.WindowEnd,
		MaxRequests:  w.MaxRequests,
		WindowMs:     w.WindowMs,
		LastRequest:  w.LastRequest,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// IncrementInWindow bumps the counter with the window-open and below-ceiling
// guards inside a single conditional UPDATE, so concurrent admits cannot push
// the count past max_requests.
func (r *RateLimitRepository) IncrementInWindow(ctx context.Context, identifier, endpoint string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RateLimit{}).
		Where("identifier = ? AND endpoint = ? AND window_end >= ? AND request_count < max_requests",
			identifier, endpoint, now).
		Updates(map[string]interface{}{
			"request_count": gorm.Expr("request_count + 1"),
			"last_request":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ResetWindow rewrites an expired row to a fresh window. The window_end guard
// ensures only one of several concurrent resetters wins.
func (r *RateLimitRepository) ResetWindow(ctx context.Context, identifier, endpoint string, w *entities.RateLimitWindow) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RateLimit{}).
		Where("identifier = ? AND endpoint = ? AND window_end < ?", identifier, endpoint, w.WindowStart).
		Updates(map[string]interface{}{
			"request_count": w.RequestCount,
			"window_start":  w.WindowStart,
			"window_end":    w.WindowEnd,
			"max_requests":  w.MaxRequests,
			"window_ms":     w.WindowMs,
			"last_request":  w.LastRequest,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete removes the window row (administrative override)
func (r *RateLimitRepository) Delete(ctx context.Context, identifier, endpoint string) error {
	result := r.db.WithContext(ctx).
		Delete(&models.RateLimit{}, "identifier = ? AND endpoint = ?", identifier, endpoint)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// DeleteExpired bulk-deletes rows whose window has fully passed
func (r *RateLimitRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.RateLimit{}, "window_end < ?", now)
	return result.RowsAffected, result.Error
}

func toRateLimitEntity(m *models.RateLimit) *entities.RateLimitWindow {
	return &entities.RateLimitWindow{
		ID:           m.ID,
		Identifier:   m.Identifier,
		Endpoint:     m.Endpoint,
		RequestCount: m.RequestCount,
		WindowStart:  m.WindowStart,
		WindowEnd:    m.WindowEnd,
		MaxRequests:  m.MaxRequests,
		WindowMs:     m.WindowMs,
		LastRequest:  m.LastRequest,
	}
}
