package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/consumer"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/ierr"
	"go.uber.org/zap"
)

// CatalogService manages the reference entities licenses point at: products
// and consumers.
type CatalogService struct {
	store  store.Store
	logger *zap.Logger
}

func NewCatalogService(st store.Store, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: st, logger: logger.Named("CatalogService")}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *dto.CreateProductRequest) (*product.Product, error) {
	if existing, err := s.store.Products().FindBySlug(ctx, req.Slug); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: product slug %q already exists", ierr.ErrConflict, req.Slug)
	} else if err != nil && !errors.Is(err, product.ErrNotFound) {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}

	p := &product.Product{
		Name:     req.Name,
		Slug:     req.Slug,
		IsActive: true,
	}
	if req.Description != "" {
		p.Description = sql.NullString{String: req.Description, Valid: true}
	}

	id, err := s.store.Products().Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("id", id.String()), zap.String("slug", p.Slug))
	return s.store.Products().FindByID(ctx, id)
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	return s.store.Products().FindByID(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*product.Product, error) {
	return s.store.Products().List(ctx)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req *dto.UpdateProductRequest) (*product.Product, error) {
	p, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := s.store.Products().Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) CreateConsumer(ctx context.Context, req *dto.CreateConsumerRequest) (*consumer.Consumer, error) {
	if existing, err := s.store.Consumers().FindByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: consumer email already registered", ierr.ErrConflict)
	} else if err != nil && !errors.Is(err, consumer.ErrNotFound) {
		return nil, fmt.Errorf("consumer lookup failed: %w", err)
	}

	c := &consumer.Consumer{
		Name:  req.Name,
		Email: req.Email,
	}
	if req.Organization != "" {
		c.Organization = sql.NullString{String: req.Organization, Valid: true}
	}

	id, err := s.store.Consumers().Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Consumer created", zap.String("id", id.String()))
	return s.store.Consumers().FindByID(ctx, id)
}

func (s *CatalogService) GetConsumer(ctx context.Context, id uuid.UUID) (*consumer.Consumer, error) {
	return s.store.Consumers().FindByID(ctx, id)
}

func (s *CatalogService) ListConsumers(ctx context.Context) ([]*consumer.Consumer, error) {
	return s.store.Consumers().List(ctx)
}

func (s *CatalogService) UpdateConsumer(ctx context.Context, id uuid.UUID, req *dto.UpdateConsumerRequest) (*consumer.Consumer, error) {
	c, err := s.store.Consumers().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Organization != nil {
		c.Organization = sql.NullString{String: *req.Organization, Valid: *req.Organization != ""}
	}
	if err := s.store.Consumers().Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
