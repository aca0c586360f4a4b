package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/domain/repositories"
)

// admitAttempts bounds the create/reset retry loop under contention.
const admitAttempts = 3

// RateLimiterUsecase enforces per (identifier, endpoint) sliding windows.
// All admission decisions happen through guarded writes at the store level,
// so concurrent requests for the same bucket cannot overshoot the ceiling.
type RateLimiterUsecase struct {
	rateLimitRepo repositories.RateLimitRepository
	now           func() time.Time
}

// NewRateLimiterUsecase creates a new rate limiter
func NewRateLimiterUsecase(rateLimitRepo repositories.RateLimitRepository) *RateLimiterUsecase {
	return &RateLimiterUsecase{
		rateLimitRepo: rateLimitRepo,
		now:           time.Now,
	}
}

// Admit counts one request against the bucket's current window.
//
// State machine: no-window -> active-window -> expired-window -> reset.
// Any persistence failure rejects the request (fail-closed) with
// ErrRateLimiterUnavailable rather than silently admitting it.
func (u *RateLimiterUsecase) Admit(ctx context.Context, identifier, endpoint string, policy config.RateLimitPolicy) (*entities.AdmitResult, error) {
	for attempt := 0; attempt < admitAttempts; attempt++ {
		now := u.now()

		w, err := u.rateLimitRepo.Find(ctx, identifier, endpoint)
		if err != nil {
			if !errors.Is(err, domainerrors.ErrNotFound) {
				return nil, domainerrors.ErrRateLimiterUnavailable
			}

			fresh := u.freshWindow(identifier, endpoint, policy, now)
			if err := u.rateLimitRepo.Create(ctx, fresh); err != nil {
				// Lost the insert race on the unique bucket index; reload.
				continue
			}
			return &entities.AdmitResult{
				Allowed:   true,
				Limit:     policy.MaxRequests,
				Remaining: policy.MaxRequests - 1,
				ResetTime: fresh.WindowEnd,
			}, nil
		}

		if w.Expired(now) {
			fresh := u.freshWindow(identifier, endpoint, policy, now)
			applied, err := u.rateLimitRepo.ResetWindow(ctx, identifier, endpoint, fresh)
			if err != nil {
				return nil, domainerrors.ErrRateLimiterUnavailable
			}
			if !applied {
				// Another request reset the window first; count against it.
				continue
			}
			return &entities.AdmitResult{
				Allowed:   true,
				Limit:     policy.MaxRequests,
				Remaining: policy.MaxRequests - 1,
				ResetTime: fresh.WindowEnd,
			}, nil
		}

		if w.RequestCount >= w.MaxRequests {
			return &entities.AdmitResult{
				Allowed:   false,
				Limit:     w.MaxRequests,
				Remaining: 0,
				ResetTime: w.WindowEnd,
			}, nil
		}

		applied, err := u.rateLimitRepo.IncrementInWindow(ctx, identifier, endpoint, now)
		if err != nil {
			return nil, domainerrors.ErrRateLimiterUnavailable
		}
		if !applied {
			// Window filled or expired between the read and the write.
			continue
		}

		remaining := w.MaxRequests - (w.RequestCount + 1)
		if remaining < 0 {
			remaining = 0
		}
		return &entities.AdmitResult{
			Allowed:   true,
			Limit:     w.MaxRequests,
			Remaining: remaining,
			ResetTime: w.WindowEnd,
		}, nil
	}

	return nil, domainerrors.ErrRateLimiterUnavailable
}

// Info reports the bucket state without mutating it
func (u *RateLimiterUsecase) Info(ctx context.Context, identifier, endpoint string, policy config.RateLimitPolicy) (*entities.RateLimitInfo, error) {
	now := u.now()

	w, err := u.rateLimitRepo.Find(ctx, identifier, endpoint)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return &entities.RateLimitInfo{
				Identifier: identifier,
				Endpoint:   endpoint,
				Limit:      policy.MaxRequests,
				Remaining:  policy.MaxRequests,
				ResetTime:  now.Add(policy.Window),
			}, nil
		}
		return nil, domainerrors.PersistenceError(err)
	}

	if w.Expired(now) {
		return &entities.RateLimitInfo{
			Identifier: identifier,
			Endpoint:   endpoint,
			Limit:      w.MaxRequests,
			Remaining:  w.MaxRequests,
			ResetTime:  now.Add(policy.Window),
		}, nil
	}

	remaining := w.MaxRequests - w.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	return &entities.RateLimitInfo{
		Identifier: identifier,
		Endpoint:   endpoint,
		Limit:      w.MaxRequests,
		Remaining:  remaining,
		ResetTime:  w.WindowEnd,
	}, nil
}

// Reset removes the bucket row (administrative override)
func (u *RateLimiterUsecase) Reset(ctx context.Context, identifier, endpoint string) error {
	return u.rateLimitRepo.Delete(ctx, identifier, endpoint)
}

// CleanupExpired bulk-deletes fully expired windows
func (u *RateLimiterUsecase) CleanupExpired(ctx context.Context) (int64, error) {
	return u.rateLimitRepo.DeleteExpired(ctx, u.now())
}

func (u *RateLimiterUsecase) freshWindow(identifier, endpoint string, policy config.RateLimitPolicy, now time.Time) *entities.RateLimitWindow {
	return &entities.RateLimitWindow{
		ID:           uuid.New(),
		Identifier:   identifier,
		Endpoint:     endpoint,
		RequestCount: 1,
		WindowStart:  now,
		WindowEnd:    now.Add(policy.Window),
		MaxRequests:  policy.MaxRequests,
		WindowMs:     policy.Window.Milliseconds(),
		LastRequest:  now,
	}
}
