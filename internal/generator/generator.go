package generator

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/license"
	"github.com/keyline/license-backoffice/internal/ierr"
	"go.uber.org/zap"
)

// Request carries everything a strategy needs to mint key material for a
// license. The service layer owns persistence; strategies only produce keys
// and, for the license-file model, a signed payload.
type Request struct {
	Model           license.Model
	ProductID       uuid.UUID
	ConsumerID      uuid.UUID
	Tier            string
	ValidFrom       time.Time
	ValidTo         time.Time
	MaxAllowedUsers int32
}

type Result struct {
	LicenseKey string
	Code       string
	Signature  string
	PublicKey  string
}

type Generator interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// KeySource resolves the active signing key pair for a product. Implemented
// by the key management service.
type KeySource interface {
	ActiveKeyPair(ctx context.Context, productID uuid.UUID) (*rsa.PrivateKey, string, error)
}

type Factory struct {
	productKey  Generator
	licenseFile Generator
	volumetric  Generator
}

func NewFactory(keys KeySource, logger *zap.Logger) *Factory {
	return &Factory{
		productKey:  &productKeyGenerator{},
		licenseFile: &licenseFileGenerator{keys: keys, logger: logger.Named("LicenseFileGenerator")},
		volumetric:  &volumetricGenerator{},
	}
}

func (f *Factory) For(model license.Model) (Generator, error) {
	switch model {
	case license.ModelProductKey:
		return f.productKey, nil
	case license.ModelLicenseFile:
		return f.licenseFile, nil
	case license.ModelVolumetric:
		return f.volumetric, nil
	default:
		return nil, fmt.Errorf("%w: %q", ierr.ErrUnsupportedLicModel, model)
	}
}
