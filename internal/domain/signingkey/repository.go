package signingkey

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, k *SigningKey) (uuid.UUID, error)
	FindActiveByProduct(ctx context.Context, productID uuid.UUID) (*SigningKey, error)
	DeactivateForProduct(ctx context.Context, productID uuid.UUID) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*SigningKey, error)
}
