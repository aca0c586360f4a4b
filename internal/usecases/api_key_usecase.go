package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/domain/repositories"
	"skycast.backend/pkg/crypto"
	"skycast.backend/pkg/logger"
)

// ApiKeyUsecase is the key registry: it issues, hashes, and validates API keys.
type ApiKeyUsecase struct {
	apiKeyRepo repositories.ApiKeyRepository
	bcryptCost int
	now        func() time.Time
}

// NewApiKeyUsecase creates a new API key usecase
func NewApiKeyUsecase(apiKeyRepo repositories.ApiKeyRepository, bcryptCost int) *ApiKeyUsecase {
	return &ApiKeyUsecase{
		apiKeyRepo: apiKeyRepo,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// IssueApiKey generates a secret, hashes it, persists the key row, and
// returns the plaintext exactly once. userID is nil for system-issued keys.
func (u *ApiKeyUsecase) IssueApiKey(ctx context.Context, userID *uuid.UUID, input *entities.CreateApiKeyInput) (*entities.CreateApiKeyResponse, error) {
	role := input.Role
	if role == "" {
		role = entities.KeyRoleUser
	}
	if !role.Valid() {
		return nil, domainerrors.BadRequest("invalid key role")
	}

	secret, err := crypto.GenerateAPIKey()
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	hash, err := crypto.HashAPIKey(secret, u.bcryptCost)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	now := u.now()
	key := &entities.ApiKey{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        input.Name,
		KeyFragment: crypto.KeyFragment(secret),
		KeyHash:     hash,
		Role:        role,
		IsActive:    true,
		ExpiresAt:   null.TimeFromPtr(input.ExpiresAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := u.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, domainerrors.PersistenceError(err)
	}

	return &entities.CreateApiKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Role:      key.Role,
		ApiKey:    secret, // shown once
		ExpiresAt: key.ExpiresAt,
		CreatedAt: key.CreatedAt,
	}, nil
}

// ValidateApiKey returns the key row matching a presented secret.
//
// Only the hash is stored, so candidates are narrowed by the non-secret
// fragment and each one is confirmed with the bcrypt comparer. A key found
// expired here is deactivated as a side effect (lazy expiry).
func (u *ApiKeyUsecase) ValidateApiKey(ctx context.Context, secret string) (*entities.ApiKey, error) {
	if !crypto.HasKeyPrefix(secret) {
		return nil, domainerrors.ErrInvalidCredential
	}

	candidates, err := u.apiKeyRepo.FindActiveByFragment(ctx, crypto.KeyFragment(secret))
	if err != nil {
		return nil, domainerrors.PersistenceError(err)
	}

	for _, key := range candidates {
		if !crypto.CheckAPIKey(secret, key.KeyHash) {
			continue
		}

		if key.Expired(u.now()) {
			if err := u.apiKeyRepo.Deactivate(ctx, key.ID); err != nil {
				logger.Warn(ctx, "failed to deactivate expired api key",
					zap.String("key_id", key.ID.String()), zap.Error(err))
			}
			return nil, domainerrors.ErrInvalidCredential
		}

		if err := u.apiKeyRepo.TouchLastUsed(ctx, key.ID); err != nil {
			logger.Warn(ctx, "failed to stamp api key last_used_at",
				zap.String("key_id", key.ID.String()), zap.Error(err))
		}
		return key, nil
	}

	return nil, domainerrors.ErrInvalidCredential
}

// GetApiKey gets a key by id
func (u *ApiKeyUsecase) GetApiKey(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error) {
	return u.apiKeyRepo.FindByID(ctx, id)
}

// ListApiKeys lists keys owned by a user
func (u *ApiKeyUsecase) ListApiKeys(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error) {
	return u.apiKeyRepo.FindByUserID(ctx, userID)
}

// UpdateApiKey applies a partial update (rename, toggle, change expiry)
func (u *ApiKeyUsecase) UpdateApiKey(ctx context.Context, id uuid.UUID, input *entities.UpdateApiKeyInput) (*entities.ApiKey, error) {
	key, err := u.apiKeyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		key.Name = *input.Name
	}
	if input.IsActive != nil {
		key.IsActive = *input.IsActive
	}
	if input.ExpiresAt != nil {
		key.ExpiresAt = null.TimeFrom(*input.ExpiresAt)
	}

	if err := u.apiKeyRepo.Update(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeactivateApiKey flips a key inactive
func (u *ApiKeyUsecase) DeactivateApiKey(ctx context.Context, id uuid.UUID) error {
	return u.apiKeyRepo.Deactivate(ctx, id)
}

// DeleteApiKey removes a key
func (u *ApiKeyUsecase) DeleteApiKey(ctx context.Context, id uuid.UUID) error {
	return u.apiKeyRepo.Delete(ctx, id)
}

// ShouldBypassRateLimit is true only for the highest-privilege role
func (u *ApiKeyUsecase) ShouldBypassRateLimit(role entities.KeyRole) bool {
	return role == entities.KeyRoleRoot
}
