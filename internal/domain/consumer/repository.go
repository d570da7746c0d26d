package consumer

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consumer) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Consumer, error)
	FindByEmail(ctx context.Context, email string) (*Consumer, error)
	List(ctx context.Context) ([]*Consumer, error)
	Update(ctx context.Context, c *Consumer) error
}
