package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"go.uber.org/zap"
)

// AuditService is the read API over the audit trail. Writes happen inside
// the mutating services' transactions, never here.
type AuditService struct {
	store  store.Store
	logger *zap.Logger
}

func NewAuditService(st store.Store, logger *zap.Logger) *AuditService {
	return &AuditService{store: st, logger: logger.Named("AuditService")}
}

func (s *AuditService) List(ctx context.Context, req *dto.ListAuditRequest) ([]*audit.Entry, int64, error) {
	params := audit.ListParams{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}
	return s.store.AuditEntries().List(ctx, params)
}

func (s *AuditService) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]*audit.Entry, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.AuditEntries().List(ctx, audit.ListParams{
		EntityType: &entityType,
		EntityID:   &entityID,
		Limit:      limit,
		Offset:     offset,
	})
}
