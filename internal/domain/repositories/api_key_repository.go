package repositories

import (
	"context"

	"github.com/google/uuid"
	"skycast.backend/internal/domain/entities"
)

// ApiKeyRepository defines API key data operations
type ApiKeyRepository interface {
	Create(ctx context.Context, key *entities.ApiKey) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.ApiKey, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.ApiKey, error)
	// FindActiveByFragment returns active keys whose stored non-secret fragment
	// matches; the slow hash comparison still decides the final match.
	FindActiveByFragment(ctx context.Context, fragment string) ([]*entities.ApiKey, error)
	Update(ctx context.Context, key *entities.ApiKey) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}
