package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/usecases"
	"skycast.backend/pkg/crypto"
	"skycast.backend/pkg/logger"
	"skycast.backend/pkg/metrics"
)

const (
	// ApiKeyHeader is the dedicated API key header
	ApiKeyHeader = "X-Api-Key"
	// ApiKeyQueryParam is the query-string fallback for the credential
	ApiKeyQueryParam = "api_key"
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "

	// Context keys set for wrapped handlers
	ApiKeyIDKey      = "apiKeyId"
	ApiKeyRoleKey    = "apiKeyRole"
	AuthUserIDKey    = "authUserId"
	AuthenticatedKey = "authenticated"
	ClientIPKey      = "clientIp"

	invalidKeyMessage  = "Invalid API key"
	requiredKeyMessage = "API key required"
)

// RouteOptions configures the gateway pipeline for one route.
type RouteOptions struct {
	// Endpoint is the logical name used for rate limit buckets and audit rows.
	Endpoint string
	// RequireAuth demands a valid API key unless AllowPublic is also set.
	RequireAuth bool
	// AllowPublic permits unauthenticated traffic on an auth-aware route.
	AllowPublic bool
	// Policy is the rate limit window applied to this route.
	Policy config.RateLimitPolicy
	// SkipAudit opts pure health checks out of the audit trail.
	SkipAudit bool
}

// Gateway wraps business handlers with credential validation, rate
// limiting, auditing, and security headers. It is the only component that
// decides HTTP-visible status codes for governance outcomes.
type Gateway struct {
	apiKeys *usecases.ApiKeyUsecase
	limiter *usecases.RateLimiterUsecase
	auditor *usecases.AuditUsecase
}

// NewGateway creates a new gateway
func NewGateway(apiKeys *usecases.ApiKeyUsecase, limiter *usecases.RateLimiterUsecase, auditor *usecases.AuditUsecase) *Gateway {
	return &Gateway{
		apiKeys: apiKeys,
		limiter: limiter,
		auditor: auditor,
	}
}

// Wrap builds the per-route middleware chain entry
func (g *Gateway) Wrap(opts RouteOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		clientIP := ExtractClientIP(c.Request)
		c.Set(ClientIPKey, clientIP)

		var (
			key      *entities.ApiKey
			outcome  = metrics.OutcomeOK
			errorMsg null.String
		)

		finish := func(status int) {
			metrics.RequestsTotal.WithLabelValues(opts.Endpoint, outcome).Inc()
			if opts.SkipAudit {
				return
			}
			g.auditor.Record(c.Request.Context(), usecases.RecordInput{
				Endpoint:       opts.Endpoint,
				Method:         c.Request.Method,
				IPAddress:      clientIP,
				UserAgent:      c.Request.UserAgent(),
				ApiKeyID:       keyID(key),
				UserID:         keyUserID(key),
				RequestParams:  encodeQueryParams(c),
				ResponseStatus: status,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				ErrorMessage:   errorMsg,
				RequestBytes:   requestBytes(c.Request),
				ResponseBytes:  int64(c.Writer.Size()),
			})
		}

		// Step 1-2: credential extraction and validation.
		secret, present := extractCredential(c)
		if present {
			validated, err := g.apiKeys.ValidateApiKey(c.Request.Context(), secret)
			if err != nil {
				// A malformed and a revoked key look identical to the caller.
				outcome = metrics.OutcomeUnauthorized
				errorMsg = null.StringFrom(invalidKeyMessage)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": invalidKeyMessage})
				finish(http.StatusUnauthorized)
				return
			}
			key = validated
			c.Set(ApiKeyIDKey, key.ID)
			c.Set(ApiKeyRoleKey, string(key.Role))
			if key.UserID != nil {
				c.Set(AuthUserIDKey, *key.UserID)
			}
			c.Set(AuthenticatedKey, true)
		}

		// Step 3: protected routes refuse anonymous callers.
		if key == nil && opts.RequireAuth && !opts.AllowPublic {
			outcome = metrics.OutcomeUnauthorized
			errorMsg = null.StringFrom(requiredKeyMessage)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": requiredKeyMessage})
			finish(http.StatusUnauthorized)
			return
		}

		// Steps 4-5: rate limiting, keyed by key id or caller IP.
		if key == nil || !g.apiKeys.ShouldBypassRateLimit(key.Role) {
			identifier := RateLimitIdentifier(key, clientIP)

			result, err := g.limiter.Admit(c.Request.Context(), identifier, opts.Endpoint, opts.Policy)
			if err != nil {
				// Fail closed: a broken limiter rejects rather than admits.
				outcome = metrics.OutcomeError
				errorMsg = null.StringFrom(domainerrors.ErrRateLimiterUnavailable.Error())
				logger.Error(c.Request.Context(), "rate limiter unavailable",
					zap.String("identifier", identifier), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
				finish(http.StatusServiceUnavailable)
				return
			}

			setRateLimitHeaders(c, result)
			if !result.Allowed {
				outcome = metrics.OutcomeRateLimited
				metrics.RateLimitRejections.WithLabelValues(opts.Endpoint).Inc()
				retryAfter := result.RetryAfter(time.Now())
				errorMsg = null.StringFrom("Rate limit exceeded")
				c.Header("Retry-After", strconv.Itoa(retryAfter))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":      "Rate limit exceeded",
					"limit":      result.Limit,
					"remaining":  result.Remaining,
					"resetTime":  result.ResetTime.UTC().Format(time.RFC3339),
					"retryAfter": retryAfter,
				})
				finish(http.StatusTooManyRequests)
				return
			}
		}

		// Steps 6-7: run the business handler; panics become audited 500s.
		func() {
			defer func() {
				if r := recover(); r != nil {
					outcome = metrics.OutcomeError
					errorMsg = null.StringFrom(fmt.Sprint(r))
					logger.Error(c.Request.Context(), "handler panic",
						zap.String("endpoint", opts.Endpoint), zap.Any("panic", r))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				}
			}()
			c.Next()
		}()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest && !errorMsg.Valid && len(c.Errors) > 0 {
			errorMsg = null.StringFrom(c.Errors.Last().Error())
		}
		if status >= http.StatusInternalServerError && outcome == metrics.OutcomeOK {
			outcome = metrics.OutcomeError
		}
		finish(status)
	}
}

// RateLimitIdentifier buckets by key id when authenticated, else caller IP.
func RateLimitIdentifier(key *entities.ApiKey, clientIP string) string {
	if key != nil {
		return "key:" + key.ID.String()
	}
	return "ip:" + clientIP
}

// ExtractClientIP derives the caller IP from proxy headers in priority
// order, falling back to "unknown".
func ExtractClientIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		// First hop in the chain is the original client.
		for i := 0; i < len(v); i++ {
			if v[i] == ',' {
				return trimSpaces(v[:i])
			}
		}
		return trimSpaces(v)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return trimSpaces(v)
	}
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return trimSpaces(v)
	}
	return "unknown"
}

func trimSpaces(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

func extractCredential(c *gin.Context) (string, bool) {
	// Bearer tokens without the key prefix are session JWTs, not API keys.
	if auth := c.GetHeader(AuthorizationHeader); len(auth) > len(BearerPrefix) && auth[:len(BearerPrefix)] == BearerPrefix {
		if token := auth[len(BearerPrefix):]; crypto.HasKeyPrefix(token) {
			return token, true
		}
	}
	if v := c.GetHeader(ApiKeyHeader); v != "" {
		return v, true
	}
	if v := c.Query(ApiKeyQueryParam); v != "" {
		return v, true
	}
	return "", false
}

func setRateLimitHeaders(c *gin.Context, result *entities.AdmitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
}

func encodeQueryParams(c *gin.Context) null.String {
	query := c.Request.URL.Query()
	if len(query) == 0 {
		return null.String{}
	}
	raw, err := json.Marshal(query)
	if err != nil {
		return null.String{}
	}
	return null.StringFrom(string(raw))
}

func requestBytes(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	return 0
}

func keyID(key *entities.ApiKey) *uuid.UUID {
	if key == nil {
		return nil
	}
	id := key.ID
	return &id
}

func keyUserID(key *entities.ApiKey) *uuid.UUID {
	if key == nil {
		return nil
	}
	return key.UserID
}

// GetApiKeyID gets the authenticated key id from context
func GetApiKeyID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ApiKeyIDKey)
	if !exists {
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// GetApiKeyRole gets the authenticated key role from context
func GetApiKeyRole(c *gin.Context) (entities.KeyRole, bool) {
	v, exists := c.Get(ApiKeyRoleKey)
	if !exists {
		return "", false
	}
	return entities.KeyRole(v.(string)), true
}

// GetAuthUserID gets the key owner's user id from context
func GetAuthUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(AuthUserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// RequireKeyRole guards a route group behind specific key roles
func RequireKeyRole(roles ...entities.KeyRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetApiKeyRole(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": requiredKeyMessage})
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}
