package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/apikey"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/util"
	"go.uber.org/zap"
)

// APIKeyService mints and manages scoped agent credentials for the public
// validation and activation surface.
type APIKeyService struct {
	repo   apikey.Repository
	logger *zap.Logger
}

func NewAPIKeyService(repo apikey.Repository, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{
		repo:   repo,
		logger: logger.Named("APIKeyService"),
	}
}

// CreateAPIKey mints a new agent key. The full key is returned exactly once;
// only its hash is persisted. An empty scope defaults to validate.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, description string, scope apikey.Scope, productID *uuid.UUID) (*dto.CreateAPIKeyResponse, string, error) {
	if scope == "" {
		scope = apikey.ScopeValidate
	}
	if !scope.Valid() {
		return nil, "", fmt.Errorf("%w: unknown api key scope %q", ierr.ErrValidation, scope)
	}

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		s.logger.Error("Failed to generate api key components", zap.Error(err))
		return nil, "", fmt.Errorf("%w: failed generating key: %v", ierr.ErrInternalServer, err)
	}

	newKey := &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: description,
		Scope:       scope,
		IsEnabled:   true,
	}
	if productID != nil {
		newKey.ProductID = *productID
	}

	insertedID, err := s.repo.Create(ctx, newKey)
	if err != nil {
		s.logger.Error("Failed to save new api key", zap.Error(err))
		return nil, "", fmt.Errorf("repository error creating api key: %w", err)
	}

	resp := &dto.CreateAPIKeyResponse{
		ID:          insertedID,
		FullKey:     fullKey,
		Prefix:      prefix,
		Description: description,
		Scope:       string(scope),
	}
	if productID != nil {
		resp.ProductID = *productID
	}

	s.logger.Info("API key created",
		zap.String("id", insertedID.String()),
		zap.String("prefix", prefix),
		zap.String("scope", string(scope)),
	)
	return resp, fullKey, nil
}

func (s *APIKeyService) ListAPIKeys(ctx context.Context) ([]*dto.APIKeyResponse, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list api keys from repository", zap.Error(err))
		return nil, fmt.Errorf("repository error listing api keys: %w", err)
	}

	responses := make([]*dto.APIKeyResponse, len(keys))
	for i, key := range keys {
		responses[i] = &dto.APIKeyResponse{
			ID:          key.ID,
			Prefix:      key.Prefix,
			Description: key.Description,
			ProductID:   key.ProductID,
			Scope:       string(key.Scope),
			IsEnabled:   key.IsEnabled,
			CreatedAt:   key.CreatedAt,
			LastUsedAt:  key.LastUsedAt,
		}
	}
	return responses, nil
}

func (s *APIKeyService) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Disable(ctx, id); err != nil {
		s.logger.Error("Failed to revoke api key", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("repository error revoking api key %s: %w", id, err)
	}
	s.logger.Info("API key revoked", zap.String("id", id.String()))
	return nil
}
