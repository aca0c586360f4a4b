package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/interfaces/http/response"
	"skycast.backend/internal/usecases"
)

// AdminHandler exposes the governance surface: key bootstrap, usage stats,
// associations, suspicious traffic, and rate limit administration.
type AdminHandler struct {
	apiKeyUsecase  *usecases.ApiKeyUsecase
	auditUsecase   *usecases.AuditUsecase
	limiterUsecase *usecases.RateLimiterUsecase
	cfg            *config.Config
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(apiKeyUsecase *usecases.ApiKeyUsecase, auditUsecase *usecases.AuditUsecase, limiterUsecase *usecases.RateLimiterUsecase, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		apiKeyUsecase:  apiKeyUsecase,
		auditUsecase:   auditUsecase,
		limiterUsecase: limiterUsecase,
		cfg:            cfg,
	}
}

type bootstrapKeyInput struct {
	Secret string           `json:"secret" binding:"required"`
	Name   string           `json:"name" binding:"required"`
	Role   entities.KeyRole `json:"role"`
}

// BootstrapKey mints an elevated key for operators who present the shared
// bootstrap secret. The route is disabled entirely when no secret is
// configured.
// POST /api/v1/admin/bootstrap-key
func (h *AdminHandler) BootstrapKey(c *gin.Context) {
	configured := h.cfg.Security.AdminBootstrapSecret
	if configured == "" {
		response.Error(c, domainerrors.NotFound("Not found"))
		return
	}

	var input bootstrapKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if subtle.ConstantTimeCompare([]byte(input.Secret), []byte(configured)) != 1 {
		response.Error(c, domainerrors.Unauthorized("Invalid bootstrap secret"))
		return
	}

	role := input.Role
	if role == "" {
		role = entities.KeyRoleAdmin
	}

	resp, err := h.apiKeyUsecase.IssueApiKey(c.Request.Context(), nil, &entities.CreateApiKeyInput{
		Name: input.Name,
		Role: role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// UsageStats aggregates audit entries over an optional time range
// GET /api/v1/admin/usage-stats
func (h *AdminHandler) UsageStats(c *gin.Context) {
	filter := entities.UsageStatsFilter{}

	if v := c.Query("apiKeyId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid apiKeyId"))
			return
		}
		filter.ApiKeyID = &id
	}
	if v := c.Query("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid userId"))
			return
		}
		filter.UserID = &id
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid since timestamp, expected RFC3339"))
			return
		}
		filter.Since = &t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid until timestamp, expected RFC3339"))
			return
		}
		filter.Until = &t
	}

	stats, err := h.auditUsecase.UsageStats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// Associations lists (IP, key, user) aggregates, most hits first
// GET /api/v1/admin/associations
func (h *AdminHandler) Associations(c *gin.Context) {
	filter := entities.AssociationFilter{
		IPAddress: c.Query("ip"),
	}

	if v := c.Query("apiKeyId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid apiKeyId"))
			return
		}
		filter.ApiKeyID = &id
	}
	if v := c.Query("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid userId"))
			return
		}
		filter.UserID = &id
	}

	associations, err := h.auditUsecase.Associations(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, associations)
}

// SuspiciousActivity flags IPs with abnormal traffic in the last hour
// GET /api/v1/admin/suspicious-activity
func (h *AdminHandler) SuspiciousActivity(c *gin.Context) {
	flagged, err := h.auditUsecase.SuspiciousActivity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, flagged)
}

// RateLimitInfo reports the current window for an (identifier, endpoint) pair
// GET /api/v1/admin/rate-limits
func (h *AdminHandler) RateLimitInfo(c *gin.Context) {
	identifier := c.Query("identifier")
	endpoint := c.Query("endpoint")
	if identifier == "" || endpoint == "" {
		response.Error(c, domainerrors.BadRequest("identifier and endpoint are required"))
		return
	}

	info, err := h.limiterUsecase.Info(c.Request.Context(), identifier, endpoint, h.cfg.RateLimit.Default)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, info)
}

// ResetRateLimit clears the window for an (identifier, endpoint) pair
// DELETE /api/v1/admin/rate-limits
func (h *AdminHandler) ResetRateLimit(c *gin.Context) {
	identifier := c.Query("identifier")
	endpoint := c.Query("endpoint")
	if identifier == "" || endpoint == "" {
		response.Error(c, domainerrors.BadRequest("identifier and endpoint are required"))
		return
	}

	if err := h.limiterUsecase.Reset(c.Request.Context(), identifier, endpoint); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Rate limit window not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Rate limit reset"})
}
