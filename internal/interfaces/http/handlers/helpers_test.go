package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/interfaces/http/middleware"
	"skycast.backend/internal/usecases"
)

type fakeApiKeyRepo struct {
	keys map[uuid.UUID]*entities.ApiKey
}

func newFakeApiKeyRepo() *fakeApiKeyRepo {
	return &fakeApiKeyRepo{keys: make(map[uuid.UUID]*entities.ApiKey)}
}

func (r *fakeApiKeyRepo) Create(_ context.Context, key *entities.ApiKey) error {
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *fakeApiKeyRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.ApiKey, error) {
	key, ok := r.keys[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (r *fakeApiKeyRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]*entities.ApiKey, error) {
	var out []*entities.ApiKey
	for _, key := range r.keys {
		if key.UserID != nil && *key.UserID == userID {
			copied := *key
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeApiKeyRepo) FindActiveByFragment(_ context.Context, fragment string) ([]*entities.ApiKey, error) {
	var out []*entities.ApiKey
	for _, key := range r.keys {
		if key.IsActive && key.KeyFragment == fragment {
			copied := *key
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeApiKeyRepo) Update(_ context.Context, key *entities.ApiKey) error {
	if _, ok := r.keys[key.ID]; !ok {
		return domainerrors.ErrNotFound
	}
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *fakeApiKeyRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	key, ok := r.keys[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	key.IsActive = false
	return nil
}

func (r *fakeApiKeyRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.keys[id]; !ok {
		return domainerrors.ErrNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *fakeApiKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID) error {
	if key, ok := r.keys[id]; ok {
		key.LastUsedAt.SetValid(time.Now())
	}
	return nil
}

type fakeRateLimitRepo struct {
	windows map[string]*entities.RateLimitWindow
}

func newFakeRateLimitRepo() *fakeRateLimitRepo {
	return &fakeRateLimitRepo{windows: make(map[string]*entities.RateLimitWindow)}
}

func (r *fakeRateLimitRepo) bucket(identifier, endpoint string) string {
	return identifier + "|" + endpoint
}

func (r *fakeRateLimitRepo) Find(_ context.Context, identifier, endpoint string) (*entities.RateLimitWindow, error) {
	w, ok := r.windows[r.bucket(identifier, endpoint)]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *fakeRateLimitRepo) Create(_ context.Context, w *entities.RateLimitWindow) error {
	copied := *w
	r.windows[r.bucket(w.Identifier, w.Endpoint)] = &copied
	return nil
}

func (r *fakeRateLimitRepo) IncrementInWindow(_ context.Context, identifier, endpoint string, now time.Time) (bool, error) {
	w, ok := r.windows[r.bucket(identifier, endpoint)]
	if !ok || now.After(w.WindowEnd) || w.RequestCount >= w.MaxRequests {
		return false, nil
	}
	w.RequestCount++
	return true, nil
}

func (r *fakeRateLimitRepo) ResetWindow(_ context.Context, identifier, endpoint string, fresh *entities.RateLimitWindow) (bool, error) {
	w, ok := r.windows[r.bucket(identifier, endpoint)]
	if !ok || !w.WindowEnd.Before(fresh.WindowStart) {
		return false, nil
	}
	copied := *fresh
	r.windows[r.bucket(identifier, endpoint)] = &copied
	return true, nil
}

func (r *fakeRateLimitRepo) Delete(_ context.Context, identifier, endpoint string) error {
	if _, ok := r.windows[r.bucket(identifier, endpoint)]; !ok {
		return domainerrors.ErrNotFound
	}
	delete(r.windows, r.bucket(identifier, endpoint))
	return nil
}

func (r *fakeRateLimitRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeAuditRepo struct {
	logs []*entities.AuditLogEntry
}

func (r *fakeAuditRepo) InsertLog(_ context.Context, entry *entities.AuditLogEntry) error {
	r.logs = append(r.logs, entry)
	return nil
}

func (r *fakeAuditRepo) UpsertAssociation(_ context.Context, _ *entities.AuditLogEntry) error {
	return nil
}

func (r *fakeAuditRepo) UsageStats(_ context.Context, _ entities.UsageStatsFilter) (*entities.UsageStats, error) {
	return &entities.UsageStats{TotalRequests: 42, UniqueIPs: 7}, nil
}

func (r *fakeAuditRepo) ListAssociations(_ context.Context, _ entities.AssociationFilter) ([]*entities.Association, error) {
	return []*entities.Association{}, nil
}

func (r *fakeAuditRepo) SuspiciousActivity(_ context.Context, _ time.Time) ([]*entities.SuspiciousIP, error) {
	return []*entities.SuspiciousIP{}, nil
}

func (r *fakeAuditRepo) PurgeLogsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeAuditRepo) PurgeAssociationsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entities.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entities.User) error {
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func newTestApiKeyUsecase() (*usecases.ApiKeyUsecase, *fakeApiKeyRepo) {
	repo := newFakeApiKeyRepo()
	return usecases.NewApiKeyUsecase(repo, bcrypt.MinCost), repo
}

// asUser simulates a session-authenticated dashboard request.
func asUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
	}
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}
