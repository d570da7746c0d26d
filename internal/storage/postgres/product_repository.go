package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"go.uber.org/zap"
)

type ProductRepository struct {
	db     querier
	logger *zap.Logger
}

func NewProductRepository(db querier, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger.Named("ProductRepository"),
	}
}

var _ product.Repository = (*ProductRepository)(nil)

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) (uuid.UUID, error) {
	query := `
        INSERT INTO products (name, slug, description, is_active)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query, p.Name, p.Slug, p.Description, p.IsActive).Scan(&insertedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Attempted to create product with duplicate slug", zap.String("slug", p.Slug))
			return uuid.Nil, fmt.Errorf("product slug '%s' already exists", p.Slug)
		}
		r.logger.Error("Failed to create product in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create product: %w", err)
	}
	return insertedID, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	query := `
        SELECT id, name, slug, description, is_active, created_at, updated_at
        FROM products WHERE id = $1
    `
	return r.scanProduct(r.db.QueryRow(ctx, query, id))
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*product.Product, error) {
	query := `
        SELECT id, name, slug, description, is_active, created_at, updated_at
        FROM products WHERE slug = $1
    `
	return r.scanProduct(r.db.QueryRow(ctx, query, slug))
}

func (r *ProductRepository) List(ctx context.Context) ([]*product.Product, error) {
	query := `
        SELECT id, name, slug, description, is_active, created_at, updated_at
        FROM products ORDER BY name
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query products", zap.Error(err))
		return nil, fmt.Errorf("database error on list products: %w", err)
	}
	defer rows.Close()

	products := make([]*product.Product, 0)
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	query := `
        UPDATE products SET name = $1, slug = $2, description = $3, is_active = $4, updated_at = NOW()
        WHERE id = $5
    `
	cmdTag, err := r.db.Exec(ctx, query, p.Name, p.Slug, p.Description, p.IsActive, p.ID)
	if err != nil {
		r.logger.Error("Failed to update product", zap.String("id", p.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		r.logger.Error("Failed to scan product row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &p, nil
}
