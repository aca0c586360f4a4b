package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/usecases"
)

type stubApiKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*entities.ApiKey
}

func newStubApiKeyRepo() *stubApiKeyRepo {
	return &stubApiKeyRepo{keys: make(map[uuid.UUID]*entities.ApiKey)}
}

func (r *stubApiKeyRepo) Create(_ context.Context, key *entities.ApiKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *stubApiKeyRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (r *stubApiKeyRepo) FindByUserID(_ context.Context, _ uuid.UUID) ([]*entities.ApiKey, error) {
	return nil, nil
}

func (r *stubApiKeyRepo) FindActiveByFragment(_ context.Context, fragment string) ([]*entities.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ApiKey
	for _, key := range r.keys {
		if key.IsActive && key.KeyFragment == fragment {
			copied := *key
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *stubApiKeyRepo) Update(_ context.Context, key *entities.ApiKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *stubApiKeyRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	key.IsActive = false
	return nil
}

func (r *stubApiKeyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, id)
	return nil
}

func (r *stubApiKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.keys[id]; ok {
		key.LastUsedAt.SetValid(time.Now())
	}
	return nil
}

type stubRateLimitRepo struct {
	mu      sync.Mutex
	windows map[string]*entities.RateLimitWindow
	failAll bool
}

func newStubRateLimitRepo() *stubRateLimitRepo {
	return &stubRateLimitRepo{windows: make(map[string]*entities.RateLimitWindow)}
}

func (r *stubRateLimitRepo) key(identifier, endpoint string) string {
	return identifier + "|" + endpoint
}

func (r *stubRateLimitRepo) Find(_ context.Context, identifier, endpoint string) (*entities.RateLimitWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errors.New("store down")
	}
	w, ok := r.windows[r.key(identifier, endpoint)]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *stubRateLimitRepo) Create(_ context.Context, w *entities.RateLimitWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("store down")
	}
	k := r.key(w.Identifier, w.Endpoint)
	if _, exists := r.windows[k]; exists {
		return errors.New("duplicate bucket")
	}
	copied := *w
	r.windows[k] = &copied
	return nil
}

func (r *stubRateLimitRepo) IncrementInWindow(_ context.Context, identifier, endpoint string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[r.key(identifier, endpoint)]
	if !ok || now.After(w.WindowEnd) || w.RequestCount >= w.MaxRequests {
		return false, nil
	}
	w.RequestCount++
	return true, nil
}

func (r *stubRateLimitRepo) ResetWindow(_ context.Context, identifier, endpoint string, fresh *entities.RateLimitWindow) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[r.key(identifier, endpoint)]
	if !ok || !w.WindowEnd.Before(fresh.WindowStart) {
		return false, nil
	}
	copied := *fresh
	r.windows[r.key(identifier, endpoint)] = &copied
	return true, nil
}

func (r *stubRateLimitRepo) Delete(_ context.Context, identifier, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, r.key(identifier, endpoint))
	return nil
}

func (r *stubRateLimitRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type stubAuditRepo struct {
	mu           sync.Mutex
	logs         []*entities.AuditLogEntry
	associations []*entities.AuditLogEntry
}

func (r *stubAuditRepo) InsertLog(_ context.Context, entry *entities.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

func (r *stubAuditRepo) UpsertAssociation(_ context.Context, entry *entities.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.associations = append(r.associations, entry)
	return nil
}

func (r *stubAuditRepo) UsageStats(_ context.Context, _ entities.UsageStatsFilter) (*entities.UsageStats, error) {
	return &entities.UsageStats{}, nil
}

func (r *stubAuditRepo) ListAssociations(_ context.Context, _ entities.AssociationFilter) ([]*entities.Association, error) {
	return nil, nil
}

func (r *stubAuditRepo) SuspiciousActivity(_ context.Context, _ time.Time) ([]*entities.SuspiciousIP, error) {
	return nil, nil
}

func (r *stubAuditRepo) PurgeLogsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *stubAuditRepo) PurgeAssociationsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *stubAuditRepo) lastLog(t *testing.T) *entities.AuditLogEntry {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.logs)
	return r.logs[len(r.logs)-1]
}

type gatewayFixture struct {
	router  *gin.Engine
	gateway *Gateway
	apiKeys *usecases.ApiKeyUsecase
	limits  *stubRateLimitRepo
	audit   *stubAuditRepo
}

func newGatewayFixture(t *testing.T, opts RouteOptions) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keyRepo := newStubApiKeyRepo()
	limitRepo := newStubRateLimitRepo()
	auditRepo := &stubAuditRepo{}

	apiKeys := usecases.NewApiKeyUsecase(keyRepo, bcrypt.MinCost)
	limiter := usecases.NewRateLimiterUsecase(limitRepo)
	auditor := usecases.NewAuditUsecase(auditRepo)
	gateway := NewGateway(apiKeys, limiter, auditor)

	r := gin.New()
	r.GET("/probe", gateway.Wrap(opts), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return &gatewayFixture{
		router:  r,
		gateway: gateway,
		apiKeys: apiKeys,
		limits:  limitRepo,
		audit:   auditRepo,
	}
}

func (f *gatewayFixture) issueKey(t *testing.T, role entities.KeyRole) string {
	t.Helper()
	resp, err := f.apiKeys.IssueApiKey(context.Background(), nil, &entities.CreateApiKeyInput{Name: "test", Role: role})
	require.NoError(t, err)
	return resp.ApiKey
}

func (f *gatewayFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func defaultPolicy() config.RateLimitPolicy {
	return config.RateLimitPolicy{Window: time.Minute, MaxRequests: 5}
}

func TestGatewayRejectsMissingCredential(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", RequireAuth: true, Policy: defaultPolicy()})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"API key required"}`, rec.Body.String())

	entry := f.audit.lastLog(t)
	require.Equal(t, http.StatusUnauthorized, entry.ResponseStatus)
	require.Equal(t, "API key required", entry.ErrorMessage.String)
	require.Nil(t, entry.ApiKeyID)
}

func TestGatewayRejectsInvalidCredentialUniformly(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", RequireAuth: true, Policy: defaultPolicy()})

	for _, secret := range []string{"garbage", "wd_live_" + "0000000000000000000000000000000000000000000000000000000000000000"} {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set(ApiKeyHeader, secret)
		rec := f.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"error":"Invalid API key"}`, rec.Body.String())
	}
}

func TestGatewayAdmitsValidKeyAndSetsHeaders(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", RequireAuth: true, Policy: defaultPolicy()})
	secret := f.issueKey(t, entities.KeyRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	entry := f.audit.lastLog(t)
	require.Equal(t, http.StatusOK, entry.ResponseStatus)
	require.NotNil(t, entry.ApiKeyID)
}

func TestGatewayCredentialSources(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", RequireAuth: true, Policy: defaultPolicy()})
	secret := f.issueKey(t, entities.KeyRoleUser)

	header := httptest.NewRequest(http.MethodGet, "/probe", nil)
	header.Header.Set(ApiKeyHeader, secret)
	require.Equal(t, http.StatusOK, f.do(header).Code)

	query := httptest.NewRequest(http.MethodGet, "/probe?api_key="+secret, nil)
	require.Equal(t, http.StatusOK, f.do(query).Code)
}

func TestGatewayRateLimitsByIP(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "images:background", Policy: config.RateLimitPolicy{Window: time.Minute, MaxRequests: 2}})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		require.Equal(t, http.StatusOK, f.do(req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := f.do(req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "Rate limit exceeded")

	entry := f.audit.lastLog(t)
	require.Equal(t, http.StatusTooManyRequests, entry.ResponseStatus)

	// A different caller IP still gets through.
	other := httptest.NewRequest(http.MethodGet, "/probe", nil)
	other.Header.Set("X-Forwarded-For", "198.51.100.2")
	require.Equal(t, http.StatusOK, f.do(other).Code)
}

func TestGatewayRootKeyBypassesRateLimit(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", RequireAuth: true, Policy: config.RateLimitPolicy{Window: time.Minute, MaxRequests: 1}})
	secret := f.issueKey(t, entities.KeyRoleRoot)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set(ApiKeyHeader, secret)
		require.Equal(t, http.StatusOK, f.do(req).Code)
	}

	// No bucket was ever created for the bypassing key.
	require.Empty(t, f.limits.windows)
}

func TestGatewayFailsClosedWhenLimiterDown(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", Policy: defaultPolicy()})
	f.limits.failAll = true

	rec := f.do(httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGatewaySkipAudit(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "health", SkipAudit: true, Policy: defaultPolicy()})

	require.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/probe", nil)).Code)
	require.Empty(t, f.audit.logs)
}

func TestGatewayAuditsPanicsAsServerErrors(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", Policy: defaultPolicy()})
	f.router.GET("/boom", f.gateway.Wrap(RouteOptions{Endpoint: "weather:current", Policy: defaultPolicy()}), func(c *gin.Context) {
		panic("kaboom")
	})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entry := f.audit.lastLog(t)
	require.Equal(t, http.StatusInternalServerError, entry.ResponseStatus)
	require.Equal(t, "kaboom", entry.ErrorMessage.String)
}

func TestGatewayRecordsQueryParams(t *testing.T) {
	f := newGatewayFixture(t, RouteOptions{Endpoint: "weather:current", Policy: defaultPolicy()})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/probe?lat=52.52&lon=13.405", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	entry := f.audit.lastLog(t)
	require.True(t, entry.RequestParams.Valid)
	require.Contains(t, entry.RequestParams.String, "52.52")
}

func TestExtractClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "unknown", ExtractClientIP(req))

	req.Header.Set("CF-Connecting-IP", "192.0.2.3")
	require.Equal(t, "192.0.2.3", ExtractClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ExtractClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", ExtractClientIP(req))
}

func TestRateLimitIdentifier(t *testing.T) {
	require.Equal(t, "ip:203.0.113.7", RateLimitIdentifier(nil, "203.0.113.7"))

	id := uuid.New()
	key := &entities.ApiKey{ID: id}
	require.Equal(t, "key:"+id.String(), RateLimitIdentifier(key, "203.0.113.7"))
}
