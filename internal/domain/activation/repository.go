package activation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Activation) (uuid.UUID, error)
	FindBySignature(ctx context.Context, signature string) (*Activation, error)
	FindActiveByLicenseAndMachine(ctx context.Context, licenseID uuid.UUID, machineID string) (*Activation, error)
	ListByProductKey(ctx context.Context, productKey string) ([]*Activation, error)
	CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error)
	Update(ctx context.Context, a *Activation) error
}
