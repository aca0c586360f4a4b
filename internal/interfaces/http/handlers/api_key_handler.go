package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"skycast.backend/internal/domain/entities"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/interfaces/http/middleware"
	"skycast.backend/internal/interfaces/http/response"
	"skycast.backend/internal/usecases"
)

// ApiKeyHandler handles self-service API key management for dashboard users.
type ApiKeyHandler struct {
	apiKeyUsecase *usecases.ApiKeyUsecase
}

// NewApiKeyHandler creates a new API key handler
func NewApiKeyHandler(apiKeyUsecase *usecases.ApiKeyUsecase) *ApiKeyHandler {
	return &ApiKeyHandler{
		apiKeyUsecase: apiKeyUsecase,
	}
}

// CreateApiKey issues a new key. The plaintext secret appears only in this
// response and is never retrievable again.
// POST /api/v1/api-keys
func (h *ApiKeyHandler) CreateApiKey(c *gin.Context) {
	var input entities.CreateApiKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	// Dashboard users cannot self-issue elevated keys.
	if input.Role == entities.KeyRoleRoot || input.Role == entities.KeyRoleAdmin {
		response.Error(c, domainerrors.Forbidden("Insufficient permissions for requested role"))
		return
	}

	resp, err := h.apiKeyUsecase.IssueApiKey(c.Request.Context(), &userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// ListApiKeys lists keys owned by the current user
// GET /api/v1/api-keys
func (h *ApiKeyHandler) ListApiKeys(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	apiKeys, err := h.apiKeyUsecase.ListApiKeys(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, apiKeys)
}

// GetApiKey returns one key owned by the current user
// GET /api/v1/api-keys/:id
func (h *ApiKeyHandler) GetApiKey(c *gin.Context) {
	key, ok := h.ownedKey(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, key)
}

// UpdateApiKey renames, toggles, or re-expires a key
// PATCH /api/v1/api-keys/:id
func (h *ApiKeyHandler) UpdateApiKey(c *gin.Context) {
	key, ok := h.ownedKey(c)
	if !ok {
		return
	}

	var input entities.UpdateApiKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	updated, err := h.apiKeyUsecase.UpdateApiKey(c.Request.Context(), key.ID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, updated)
}

// DeleteApiKey removes a key permanently
// DELETE /api/v1/api-keys/:id
func (h *ApiKeyHandler) DeleteApiKey(c *gin.Context) {
	key, ok := h.ownedKey(c)
	if !ok {
		return
	}

	if err := h.apiKeyUsecase.DeleteApiKey(c.Request.Context(), key.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "API key deleted"})
}

// ownedKey loads the :id key and enforces ownership. A key owned by someone
// else reads as not found.
func (h *ApiKeyHandler) ownedKey(c *gin.Context) (*entities.ApiKey, bool) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid API key ID"))
		return nil, false
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return nil, false
	}

	key, err := h.apiKeyUsecase.GetApiKey(c.Request.Context(), keyID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("API key not found"))
			return nil, false
		}
		response.Error(c, err)
		return nil, false
	}

	if key.UserID == nil || *key.UserID != userID {
		response.Error(c, domainerrors.NotFound("API key not found"))
		return nil, false
	}
	return key, true
}
