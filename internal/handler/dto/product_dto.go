package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/product"
)

type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required,lowercase"`
	Description string `json:"description"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewProductResponse(p *product.Product) *ProductResponse {
	resp := &ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	return resp
}

type PublicKeyResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Version   int32     `json:"version"`
	PublicKey string    `json:"public_key"`
}
