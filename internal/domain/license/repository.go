package license

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, lic *License) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)
	FindByKey(ctx context.Context, key string) (*License, error)
	FindByCode(ctx context.Context, code string) (*License, error)
	List(ctx context.Context, params ListParams) ([]*License, int64, error)
	Update(ctx context.Context, lic *License) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	CountActiveForConsumerProduct(ctx context.Context, consumerID, productID uuid.UUID, excludeID uuid.UUID) (int64, error)
	Summary(ctx context.Context) (*Summary, error)
}
