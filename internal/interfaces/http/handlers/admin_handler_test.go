package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	"skycast.backend/internal/usecases"
	"skycast.backend/pkg/crypto"
)

func newAdminRouter(t *testing.T, bootstrapSecret string) (*gin.Engine, *fakeRateLimitRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	apiKeys, _ := newTestApiKeyUsecase()
	limitRepo := newFakeRateLimitRepo()
	limiter := usecases.NewRateLimiterUsecase(limitRepo)
	auditor := usecases.NewAuditUsecase(&fakeAuditRepo{})

	cfg := &config.Config{}
	cfg.Security.AdminBootstrapSecret = bootstrapSecret
	cfg.RateLimit.Default = config.RateLimitPolicy{Window: time.Minute, MaxRequests: 50}

	h := NewAdminHandler(apiKeys, auditor, limiter, cfg)

	r := gin.New()
	r.POST("/admin/bootstrap-key", h.BootstrapKey)
	r.GET("/admin/usage-stats", h.UsageStats)
	r.GET("/admin/associations", h.Associations)
	r.GET("/admin/suspicious-activity", h.SuspiciousActivity)
	r.GET("/admin/rate-limits", h.RateLimitInfo)
	r.DELETE("/admin/rate-limits", h.ResetRateLimit)
	return r, limitRepo
}

func TestBootstrapKeyDisabledWithoutSecret(t *testing.T) {
	r, _ := newAdminRouter(t, "")

	rec := doRequest(r, jsonRequest(t, http.MethodPost, "/admin/bootstrap-key", gin.H{
		"secret": "anything",
		"name":   "ops",
	}))

	// The route does not exist as far as callers can tell.
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}

func TestBootstrapKeyRejectsWrongSecret(t *testing.T) {
	r, _ := newAdminRouter(t, "s3cret")

	rec := doRequest(r, jsonRequest(t, http.MethodPost, "/admin/bootstrap-key", gin.H{
		"secret": "wrong",
		"name":   "ops",
	}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"Invalid bootstrap secret"}`, rec.Body.String())
}

func TestBootstrapKeyIssuesAdminKeyByDefault(t *testing.T) {
	r, _ := newAdminRouter(t, "s3cret")

	rec := doRequest(r, jsonRequest(t, http.MethodPost, "/admin/bootstrap-key", gin.H{
		"secret": "s3cret",
		"name":   "ops",
	}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp entities.CreateApiKeyResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, entities.KeyRoleAdmin, resp.Role)
	require.True(t, crypto.HasKeyPrefix(resp.ApiKey))
}

func TestBootstrapKeyHonorsRequestedRole(t *testing.T) {
	r, _ := newAdminRouter(t, "s3cret")

	rec := doRequest(r, jsonRequest(t, http.MethodPost, "/admin/bootstrap-key", gin.H{
		"secret": "s3cret",
		"name":   "super-ops",
		"role":   "root",
	}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp entities.CreateApiKeyResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, entities.KeyRoleRoot, resp.Role)
}

func TestUsageStatsRejectsBadFilters(t *testing.T) {
	r, _ := newAdminRouter(t, "")

	rec := doRequest(r, jsonRequest(t, http.MethodGet, "/admin/usage-stats?apiKeyId=not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, jsonRequest(t, http.MethodGet, "/admin/usage-stats?since=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageStatsReturnsAggregates(t *testing.T) {
	r, _ := newAdminRouter(t, "")

	rec := doRequest(r, jsonRequest(t, http.MethodGet, "/admin/usage-stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats entities.UsageStats
	decodeBody(t, rec, &stats)
	require.Equal(t, int64(42), stats.TotalRequests)
	require.Equal(t, int64(7), stats.UniqueIPs)
}

func TestRateLimitInfoRequiresIdentifierAndEndpoint(t *testing.T) {
	r, _ := newAdminRouter(t, "")

	rec := doRequest(r, jsonRequest(t, http.MethodGet, "/admin/rate-limits?identifier=ip:1.2.3.4", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitInfoReportsUntouchedBucket(t *testing.T) {
	r, _ := newAdminRouter(t, "")

	rec := doRequest(r, jsonRequest(t, http.MethodGet, "/admin/rate-limits?identifier=ip:1.2.3.4&endpoint=weather:current", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info entities.RateLimitInfo
	decodeBody(t, rec, &info)
	require.Equal(t, 50, info.Limit)
	require.Equal(t, 50, info.Remaining)
}

func TestResetRateLimit(t *testing.T) {
	r, limitRepo := newAdminRouter(t, "")

	// Nothing to reset yet.
	rec := doRequest(r, jsonRequest(t, http.MethodDelete, "/admin/rate-limits?identifier=ip:1.2.3.4&endpoint=weather:current", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Rate limit window not found"}`, rec.Body.String())

	now := time.Now()
	require.NoError(t, limitRepo.Create(nil, &entities.RateLimitWindow{
		Identifier:   "ip:1.2.3.4",
		Endpoint:     "weather:current",
		RequestCount: 5,
		WindowStart:  now,
		WindowEnd:    now.Add(time.Minute),
		MaxRequests:  50,
	}))

	rec = doRequest(r, jsonRequest(t, http.MethodDelete, "/admin/rate-limits?identifier=ip:1.2.3.4&endpoint=weather:current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, limitRepo.windows)
}

func TestSuspiciousActivityEmpty(t *testing.T) {
	r, _ := newAdminRouter(t, "")

	rec := doRequest(r, jsonRequest(t, http.MethodGet, "/admin/suspicious-activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
