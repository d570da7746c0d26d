package generator

import (
	"context"
	"fmt"

	"github.com/keyline/license-backoffice/internal/util"
)

type volumetricGenerator struct{}

func (g *volumetricGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req.MaxAllowedUsers <= 0 {
		return nil, fmt.Errorf("volumetric license requires a positive seat count, got %d", req.MaxAllowedUsers)
	}
	key, err := util.GenerateVolumetricKey(req.MaxAllowedUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate volumetric key: %w", err)
	}
	code, err := util.GenerateLicenseCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate license code: %w", err)
	}
	return &Result{LicenseKey: key, Code: code}, nil
}
