package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/infrastructure/models"
)

// ApiKeyRepository implements API key data operations
type ApiKeyRepository struct {
	db *gorm.DB
}

// NewApiKeyRepository creates a new API key repository
func NewApiKeyRepository(db *gorm.DB) *ApiKeyRepository {
	return &ApiKeyRepository{db: db}
}

// Create persists a new API key
func (r *ApiKeyRepository) Create(ctx context.Context, key *entities.ApiKey) error {
	m := &models.ApiKey{
		ID:          key.ID,
		UserID:      key.UserID,
		Name:        key.Name,
		KeyFragment: key.KeyFragment,
		KeyHash:     key.KeyHash,
		Role:        string(key.Role),
		IsActive:    key.IsActive,
		ExpiresAt:   key.ExpiresAt.Ptr(),
		CreatedAt:   key.CreatedAt,
		UpdatedAt:   key.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID gets an API key by ID
func (r *ApiKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error) {
	var m models.ApiKey
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toApiKeyEntity(&m), nil
}

// FindByUserID lists keys owned by a user, newest first
func (r *ApiKeyRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error) {
	var keyModels []models.ApiKey
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keyModels).Error; err != nil {
		return nil, err
	}

	keys := make([]*entities.ApiKey, 0, len(keyModels))
	for i := range keyModels {
		keys = append(keys, toApiKeyEntity(&keyModels[i]))
	}
	return keys, nil
}

// FindActiveByFragment lists active keys sharing a lookup fragment
func (r *ApiKeyRepository) FindActiveByFragment(ctx context.Context, fragment string) ([]*entities.ApiKey, error) {
	var keyModels []models.ApiKey
	if err := r.db.WithContext(ctx).
		Where("key_fragment = ? AND is_active = ?", fragment, true).
		Find(&keyModels).Error; err != nil {
		return nil, err
	}

	keys := make([]*entities.ApiKey, 0, len(keyModels))
	for i := range keyModels {
		keys = append(keys, toApiKeyEntity(&keyModels[i]))
	}
	return keys, nil
}

// Update rewrites the mutable fields of a key
func (r *ApiKeyRepository) Update(ctx context.Context, key *entities.ApiKey) error {
	updates := map[string]interface{}{
		"name":       key.Name,
		"is_active":  key.IsActive,
		"expires_at": key.ExpiresAt.Ptr(),
		"updated_at": time.Now(),
	}

	result := r.db.WithContext(ctx).Model(&models.ApiKey{}).Where("id = ?", key.ID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Deactivate flips the active flag off
func (r *ApiKeyRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.ApiKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Delete removes a key
func (r *ApiKeyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ApiKey{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// TouchLastUsed stamps the last successful validation time
func (r *ApiKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ApiKey{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now()).Error
}

func toApiKeyEntity(m *models.ApiKey) *entities.ApiKey {
	return &entities.ApiKey{
		ID:          m.ID,
		UserID:      m.UserID,
		Name:        m.Name,
		KeyFragment: m.KeyFragment,
		KeyHash:     m.KeyHash,
		Role:        entities.KeyRole(m.Role),
		IsActive:    m.IsActive,
		LastUsedAt:  null.TimeFromPtr(m.LastUsedAt),
		ExpiresAt:   null.TimeFromPtr(m.ExpiresAt),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
