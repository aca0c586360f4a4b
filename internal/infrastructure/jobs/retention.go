package jobs

import (
	"context"
	"log"
	"time"

	"skycast.backend/internal/config"
	"skycast.backend/internal/usecases"
)

// RetentionJob periodically purges aged audit data and expired rate limit
// windows.
type RetentionJob struct {
	auditUsecase   *usecases.AuditUsecase
	limiterUsecase *usecases.RateLimiterUsecase
	retention      config.RetentionConfig
	stop           chan struct{}
}

func NewRetentionJob(auditUsecase *usecases.AuditUsecase, limiterUsecase *usecases.RateLimiterUsecase, retention config.RetentionConfig) *RetentionJob {
	return &RetentionJob{
		auditUsecase:   auditUsecase,
		limiterUsecase: limiterUsecase,
		retention:      retention,
		stop:           make(chan struct{}),
	}
}

func (j *RetentionJob) Start(ctx context.Context) {
	log.Println("🕐 Starting retention job...")

	ticker := time.NewTicker(j.retention.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Retention job stopped (context cancelled)")
			return
		case <-j.stop:
			log.Println("⏹️ Retention job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RetentionJob) Stop() {
	close(j.stop)
}

func (j *RetentionJob) runOnce(ctx context.Context) {
	windows, err := j.limiterUsecase.CleanupExpired(ctx)
	if err != nil {
		log.Printf("❌ Error cleaning expired rate limit windows: %v", err)
	} else if windows > 0 {
		log.Printf("✅ Removed %d expired rate limit windows", windows)
	}

	logs, assocs, err := j.auditUsecase.PurgeOlderThan(ctx, j.retention.AuditDays, j.retention.AssociationDays)
	if err != nil {
		log.Printf("❌ Error purging aged audit data: %v", err)
		return
	}
	if logs > 0 || assocs > 0 {
		log.Printf("✅ Purged %d audit entries and %d stale associations", logs, assocs)
	}
}
