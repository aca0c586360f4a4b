package repositories

import (
	"context"
	"time"

	"skycast.backend/internal/domain/entities"
)

// RateLimitRepository defines rate limit window persistence.
//
// IncrementInWindow must be atomic at the store level: it bumps the counter
// only while the window is still open and below its ceiling, so concurrent
// requests for the same (identifier, endpoint) cannot overshoot the limit.
type RateLimitRepository interface {
	Find(ctx context.Context, identifier, endpoint string) (*entities.RateLimitWindow, error)
	Create(ctx context.Context, w *entities.RateLimitWindow) error
	// IncrementInWindow returns true when the guarded increment applied.
	IncrementInWindow(ctx context.Context, identifier, endpoint string, now time.Time) (bool, error)
	// ResetWindow rewrites an expired row to count=1 with fresh bounds. It
	// returns true when the reset applied (the row was still expired).
	ResetWindow(ctx context.Context, identifier, endpoint string, w *entities.RateLimitWindow) (bool, error)
	Delete(ctx context.Context, identifier, endpoint string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
