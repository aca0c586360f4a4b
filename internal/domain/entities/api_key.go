package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// KeyRole is the privilege level attached to an API key.
type KeyRole string

const (
	KeyRoleRoot  KeyRole = "root"
	KeyRoleAdmin KeyRole = "admin"
	KeyRoleUser  KeyRole = "user"
)

// Valid reports whether the role is one of the recognized levels.
func (r KeyRole) Valid() bool {
	switch r {
	case KeyRoleRoot, KeyRoleAdmin, KeyRoleUser:
		return true
	}
	return false
}

// ApiKey represents a credential a caller presents instead of a session.
// The plaintext secret is never stored; only its bcrypt hash is, plus a short
// non-secret fragment used to narrow validation candidates.
type ApiKey struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"userId,omitempty"` // nil for system/admin-issued keys
	Name        string     `json:"name"`
	KeyFragment string     `json:"-"`
	KeyHash     string     `json:"-"`
	Role        KeyRole    `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastUsedAt  null.Time  `json:"lastUsedAt,omitempty"`
	ExpiresAt   null.Time  `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Expired reports whether the key has an expiry in the past.
func (k *ApiKey) Expired(now time.Time) bool {
	return k.ExpiresAt.Valid && now.After(k.ExpiresAt.Time)
}

type CreateApiKeyInput struct {
	Name      string     `json:"name" binding:"required"`
	Role      KeyRole    `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// CreateApiKeyResponse carries the plaintext secret exactly once.
type CreateApiKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      KeyRole   `json:"role"`
	ApiKey    string    `json:"apiKey"`
	ExpiresAt null.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateApiKeyInput struct {
	Name      *string    `json:"name"`
	IsActive  *bool      `json:"isActive"`
	ExpiresAt *time.Time `json:"expiresAt"`
}
