package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"skycast.backend/internal/domain/entities"
	"skycast.backend/internal/domain/repositories"
	"skycast.backend/pkg/logger"
	"skycast.backend/pkg/metrics"
)

// suspiciousLookback is the window scanned by SuspiciousActivity.
const suspiciousLookback = time.Hour

// RecordInput carries everything the recorder persists about one request.
type RecordInput struct {
	Endpoint       string
	Method         string
	IPAddress      string
	UserAgent      string
	ApiKeyID       *uuid.UUID
	UserID         *uuid.UUID
	RequestParams  null.String
	ResponseStatus int
	ResponseTimeMs int64
	ErrorMessage   null.String
	RequestBytes   int64
	ResponseBytes  int64
}

// AuditUsecase appends immutable audit entries and maintains the rolling
// per (IP, key, user) association aggregates.
type AuditUsecase struct {
	auditRepo repositories.AuditRepository
	now       func() time.Time
}

// NewAuditUsecase creates a new audit usecase
func NewAuditUsecase(auditRepo repositories.AuditRepository) *AuditUsecase {
	return &AuditUsecase{
		auditRepo: auditRepo,
		now:       time.Now,
	}
}

// Record writes one audit entry and bumps the matching association.
// Failures are logged and counted but never surfaced to the request path:
// audit is observability, not a transactional participant.
func (u *AuditUsecase) Record(ctx context.Context, input RecordInput) {
	entry := &entities.AuditLogEntry{
		ID:             uuid.New(),
		Endpoint:       input.Endpoint,
		Method:         input.Method,
		IPAddress:      input.IPAddress,
		UserAgent:      input.UserAgent,
		ApiKeyID:       input.ApiKeyID,
		UserID:         input.UserID,
		RequestParams:  input.RequestParams,
		ResponseStatus: input.ResponseStatus,
		ResponseTimeMs: input.ResponseTimeMs,
		ErrorMessage:   input.ErrorMessage,
		RequestBytes:   input.RequestBytes,
		ResponseBytes:  input.ResponseBytes,
		CreatedAt:      u.now(),
	}

	if err := u.auditRepo.InsertLog(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.Error(ctx, "failed to write audit log entry",
			zap.String("endpoint", entry.Endpoint), zap.Error(err))
		return
	}

	if err := u.auditRepo.UpsertAssociation(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.Error(ctx, "failed to upsert association",
			zap.String("ip", entry.IPAddress), zap.Error(err))
	}
}

// UsageStats aggregates audit entries matching the filter
func (u *AuditUsecase) UsageStats(ctx context.Context, filter entities.UsageStatsFilter) (*entities.UsageStats, error) {
	return u.auditRepo.UsageStats(ctx, filter)
}

// Associations lists association rows, most hits first
func (u *AuditUsecase) Associations(ctx context.Context, filter entities.AssociationFilter) ([]*entities.Association, error) {
	return u.auditRepo.ListAssociations(ctx, filter)
}

// SuspiciousActivity flags IPs with abnormal traffic over the last hour
func (u *AuditUsecase) SuspiciousActivity(ctx context.Context) ([]*entities.SuspiciousIP, error) {
	return u.auditRepo.SuspiciousActivity(ctx, u.now().Add(-suspiciousLookback))
}

// PurgeOlderThan deletes audit entries and stale associations past the
// retention horizons. Returns (logs purged, associations purged).
func (u *AuditUsecase) PurgeOlderThan(ctx context.Context, auditDays, associationDays int) (int64, int64, error) {
	now := u.now()

	logs, err := u.auditRepo.PurgeLogsBefore(ctx, now.AddDate(0, 0, -auditDays))
	if err != nil {
		return 0, 0, err
	}

	assocs, err := u.auditRepo.PurgeAssociationsBefore(ctx, now.AddDate(0, 0, -associationDays))
	if err != nil {
		return logs, 0, err
	}
	return logs, assocs, nil
}
