package generator

import (
	"context"
	"fmt"

	"github.com/keyline/license-backoffice/internal/util"
)

type productKeyGenerator struct{}

func (g *productKeyGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	key, err := util.GenerateProductKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate product key: %w", err)
	}
	code, err := util.GenerateLicenseCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate license code: %w", err)
	}
	return &Result{LicenseKey: key, Code: code}, nil
}
